package main

import (
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"
)

func main() {
	dbPath := flag.String("path", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Key prefix to scan (msg:, msgid:, user:, userid:)")
	limit := flag.Int("limit", 200, "Maximum number of keys to list")
	raw := flag.Bool("raw", false, "Decode values in CBOR diagnostic notation")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"Type", "Time", "Entity", "Key", "Detail"}
	if *raw {
		header = append(header, "Value")
	}
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(*prefix)})
		defer it.Close()

		for it.Rewind(); it.Valid() && count < *limit; it.Next() {
			item := it.Item()
			row := internal.MapRow(string(item.Key()), item.ValueSize())
			line := []string{colorType(row.Type), row.Timestamp, row.EntityID, row.Key, row.Detail}
			if *raw {
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				line = append(line, describe(value))
			}
			table.Append(line)
			count++
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	color.Gray.Printf("%d key(s) under %q\n", count, *prefix)
}

// describe prints CBOR records in diagnostic notation. Index entries hold plain strings.
func describe(value []byte) string {
	if diag, err := storage.Diagnose(value); err == nil {
		return diag
	}
	return string(value)
}

func colorType(kind string) string {
	switch kind {
	case "MESSAGE":
		return color.Green.Sprint(kind)
	case "USER":
		return color.Cyan.Sprint(kind)
	case "RAW":
		return color.Yellow.Sprint(kind)
	default:
		return color.Gray.Sprint(kind)
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			return nil, fmt.Errorf("store needs recovery, start the relay once on it: %w", err)
		}
		return nil, err
	}
	return db, nil
}
