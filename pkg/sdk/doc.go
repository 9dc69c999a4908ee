// Package memcore embeds a Knowledge Unit store in a Go program.
//
// The client owns the same document store the memcore server runs: units are
// kept as field-level registers, indexed by base type and written to a
// crash-safe snapshot on every commit. Snapshots live in a local file or under
// a single Redis/Valkey key.
//
//	client, _ := memcore.New(ctx, memcore.WithFile("data/units.snapshot"))
//	defer client.Close()
//
//	u, _ := client.Units().Create(ctx, json.RawMessage(`{
//	    "source": {"type": "file_system"},
//	    "analysis": {"core": {"baseType": "document"}}
//	}`))
//	ids, _ := client.Units().ListByType(ctx, "document")
//
// Two clients over different snapshots converge with MergeFrom.
package memcore
