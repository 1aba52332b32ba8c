package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/rxtable"
	"github.com/bglgwyng/rx-table/schema"
	"github.com/bglgwyng/rx-table/storage"
	"github.com/bglgwyng/rx-table/storage/memstore"
	"github.com/bglgwyng/rx-table/storage/pgstore"
)

// itemsSchema is the demo table the repl mutates and queries: an items
// catalog with a numeric primary key.
func itemsSchema() (*schema.Table, error) {
	return schema.New("items", []schema.Column{
		{Name: "id", Kind: schema.KindNumber},
		{Name: "name", Kind: schema.KindString},
		{Name: "price", Kind: schema.KindNumber},
	}, []string{"id"})
}

func repl(args []string) error {
	sch, err := itemsSchema()
	if err != nil {
		return err
	}

	var backend storage.Backend
	if *dbFlag == "" {
		store := memstore.New()
		backend = store
		seed(store)
	} else {
		store, err := pgstore.Open(context.Background(), *dbFlag)
		if err != nil {
			return err
		}
		defer store.Close()
		backend = store
	}

	tbl, err := rxtable.New(backend, sch)
	if err != nil {
		return err
	}

	lin := liner.NewLiner()
	defer lin.Close()
	lin.SetMultiLineMode(false)

	watches := map[string]func(){}
	fmt.Println("rxtable repl — insert/upsert/update/delete id=.. [col=val ...], get id=.., find [first=N], watch id=.., unwatch id=.., quit")
	for i := 0; ; i++ {
		got, err := lin.Prompt("> ")
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			log.Printf("unexpected error reading prompt: %v", err)
			continue
		}
		got = strings.TrimSpace(got)
		if got == "" {
			continue
		}
		lin.AppendHistory(got)
		if got == "quit" || got == "exit" {
			return nil
		}
		if err := runCommand(tbl, watches, got); err != nil {
			log.Printf("error: %+v", err)
		}
	}
}

func seed(store *memstore.Store) {
	store.Seed("items", []expr.Row{
		{"id": 1, "name": "widget", "price": 10},
		{"id": 2, "name": "gadget", "price": 20},
		{"id": 3, "name": "gizmo", "price": 30},
	})
}

func runCommand(tbl *rxtable.Table, watches map[string]func(), line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, rest := fields[0], fields[1:]
	row := parseRow(rest)

	switch cmd {
	case "insert":
		if err := tbl.Insert(row); err != nil {
			return err
		}
		fmt.Println("ok")
	case "upsert":
		if err := tbl.Upsert(row); err != nil {
			return err
		}
		fmt.Println("ok")
	case "update":
		key := rtmodel.PrimaryKeyRecord{"id": row["id"]}
		delete(row, "id")
		if err := tbl.Update(key, row); err != nil {
			return err
		}
		fmt.Println("ok")
	case "delete":
		if err := tbl.Delete(rtmodel.PrimaryKeyRecord{"id": row["id"]}); err != nil {
			return err
		}
		fmt.Println("ok")
	case "get":
		dyn, err := tbl.FindUnique(rtmodel.PrimaryKeyRecord{"id": row["id"]})
		if err != nil {
			return err
		}
		got, err := dyn.Read()
		if err != nil {
			return err
		}
		fmt.Printf("= %v\n", got)
		dyn.Disconnect()
	case "find":
		first := 10
		if v, ok := row["first"]; ok {
			first = v.(int)
		}
		dyn, err := tbl.FindMany(rtmodel.ForwardPageInit{First: first, OrderBy: []rtmodel.Order{{Column: "id"}}})
		if err != nil {
			return err
		}
		got, err := dyn.Read()
		if err != nil {
			return err
		}
		fmt.Printf("= %d rows (of %d)\n", len(got.Rows), got.RowCount)
		for _, r := range got.Rows {
			fmt.Printf("  %v\n", r)
		}
		dyn.Disconnect()
	case "watch":
		key := fmt.Sprint(row["id"])
		if _, ok := watches[key]; ok {
			fmt.Println("already watching", key)
			return nil
		}
		dyn, err := tbl.FindUnique(rtmodel.PrimaryKeyRecord{"id": row["id"]})
		if err != nil {
			return err
		}
		unsub, err := dyn.Subscribe(func(ev rtmodel.TableEvent) {
			fmt.Printf("[watch %s] %s\n", key, describeEvent(ev))
		})
		if err != nil {
			return err
		}
		watches[key] = func() {
			unsub()
			dyn.Disconnect()
		}
		fmt.Println("watching", key)
	case "unwatch":
		key := fmt.Sprint(row["id"])
		if stop, ok := watches[key]; ok {
			stop()
			delete(watches, key)
			fmt.Println("stopped watching", key)
		}
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return nil
}

func describeEvent(ev rtmodel.TableEvent) string {
	switch ev.Kind {
	case rtmodel.EventInsert:
		return fmt.Sprintf("insert %v", ev.Row)
	case rtmodel.EventUpdate:
		return fmt.Sprintf("update %v", ev.Partial)
	case rtmodel.EventDelete:
		return "delete"
	default:
		return "?"
	}
}

// parseRow turns a list of "col=value" tokens into a row, coercing numeric
// tokens to int the way the demo schema's id/price/first columns expect.
func parseRow(tokens []string) rtmodel.Row {
	row := rtmodel.Row{}
	for _, tok := range tokens {
		parts := strings.SplitN(tok, "=", 2)
		if len(parts) != 2 {
			continue
		}
		row[parts[0]] = parseValue(parts[1])
	}
	return row
}

func parseValue(s string) interface{} {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
