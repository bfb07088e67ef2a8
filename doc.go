// Package wrongodb provides a small embedded document store for Go.
//
// Documents are JSON objects. Every insert is appended as one line to a
// durable log file; an in-memory equality index over a fixed set of fields
// is rebuilt from that log whenever the database is opened.
//
// # Quick Start
//
//	db, err := wrongodb.Open("./data/orders.jsonl",
//	    wrongodb.WithIndexFields("customer", "status"),
//	    wrongodb.WithSyncWrites(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	doc, _ := db.InsertOne(ctx, map[string]any{"customer": "ada", "status": "open"})
//	fmt.Println(doc.ID()) // generated UUID
//
//	open, _ := db.Find(ctx, wrongodb.Filter{"status": "open"})
//	first, err := db.FindOne(ctx, wrongodb.Filter{"customer": "ada"})
//
// # Filters
//
// A Filter is a conjunction of exact-match conditions. A document matches
// when it has every filter field and each value is equal. Numbers compare
// by value (1 equals 1.0). Filter values must be scalars: null, booleans,
// numbers or strings. Results come back in insertion order.
//
// When a filter names an indexed field, the engine narrows the candidates
// with the index of the most selective indexed field and then checks the
// whole filter on each candidate. Otherwise it scans all documents.
//
// # Durability
//
// With WithSyncWrites(true), InsertOne returns only after the record has
// reached stable storage. A crash can still leave a torn final line; by
// default Open truncates it away and logs a warning. WithTailPolicy(TailStrict)
// reports it as ErrCorrupt instead.
//
// # Backups
//
// DB.Backup copies the log into any blobstore.BlobStore (local directory,
// S3, S3 with a DynamoDB commit table, MinIO). Restore brings the newest
// copy back.
//
// # Block Files
//
// The blockfile package is a separate fixed-size page file with per-page
// checksums. The engine does not use it yet.
//
// A DB is not safe for concurrent use. Callers serialize access.
package wrongodb
