package document_test

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/memcore/internal/domain/document"
	"github.com/kailas-cloud/memcore/internal/domain/document/merge"
)

func put(t *testing.T, d *document.Document, id string, fields map[string]string) *document.Document {
	t.Helper()
	raw := make(map[string][]byte, len(fields))
	for k, v := range fields {
		raw[k] = []byte(v)
	}
	txn := d.Begin(merge.Default())
	txn.PutLocal(id, raw)
	return txn.Commit()
}

func value(t *testing.T, d *document.Document, id, field string) string {
	t.Helper()
	rec, ok := d.Record(id)
	if !ok {
		t.Fatalf("record %s missing", id)
	}
	return string(rec[field].Value)
}

func TestNew_Empty(t *testing.T) {
	d := document.New("node-a")
	if d.Len() != 0 || d.Clock() != 0 || d.Actor() != "node-a" {
		t.Errorf("unexpected state: len=%d clock=%d actor=%q", d.Len(), d.Clock(), d.Actor())
	}
	if len(d.IndexNames()) != 0 {
		t.Errorf("IndexNames() = %v", d.IndexNames())
	}
}

func TestPutLocal_FieldLevelReplace(t *testing.T) {
	d := document.New("a")
	d = put(t, d, "u1", map[string]string{"userTags": `["x"]`, "analysis": `{"k":1}`})
	d = put(t, d, "u1", map[string]string{"userTags": `["y"]`})

	if got := value(t, d, "u1", "userTags"); got != `["y"]` {
		t.Errorf("userTags = %s", got)
	}
	if got := value(t, d, "u1", "analysis"); got != `{"k":1}` {
		t.Errorf("analysis = %s, should be untouched", got)
	}
	if d.Clock() != 2 {
		t.Errorf("Clock() = %d, want 2", d.Clock())
	}
}

func TestBegin_CopyOnWrite(t *testing.T) {
	base := put(t, document.New("a"), "u1", map[string]string{"f": `1`})

	txn := base.Begin(merge.Default())
	txn.PutLocal("u1", map[string][]byte{"f": []byte(`2`)})
	txn.PutLocal("u2", map[string][]byte{"f": []byte(`3`)})
	txn.IndexAdd("byType", "t", "u2")
	next := txn.Commit()

	if got := value(t, base, "u1", "f"); got != `1` {
		t.Errorf("base mutated: %s", got)
	}
	if _, ok := base.Record("u2"); ok {
		t.Error("base gained a record")
	}
	if base.Index("byType") != nil {
		t.Error("base gained an index")
	}
	if got := value(t, next, "u1", "f"); got != `2` {
		t.Errorf("next = %s", got)
	}
}

func TestIndexAddRemove(t *testing.T) {
	txn := document.New("a").Begin(merge.Default())
	txn.IndexAdd("byType", "doc", "c")
	txn.IndexAdd("byType", "doc", "a")
	txn.IndexAdd("byType", "doc", "b")
	txn.IndexAdd("byType", "doc", "a")
	d := txn.Commit()

	if got := d.Lookup("byType", "doc"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Lookup = %v", got)
	}

	txn = d.Begin(merge.Default())
	txn.IndexRemove("byType", "doc", "b")
	txn.IndexRemove("byType", "doc", "missing")
	d2 := txn.Commit()
	if got := d2.Lookup("byType", "doc"); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Lookup after remove = %v", got)
	}
	if got := d.Lookup("byType", "doc"); len(got) != 3 {
		t.Errorf("committed index mutated: %v", got)
	}

	txn = d2.Begin(merge.Default())
	txn.IndexRemove("byType", "doc", "a")
	txn.IndexRemove("byType", "doc", "c")
	d3 := txn.Commit()
	if _, ok := d3.Index("byType")["doc"]; ok {
		t.Error("empty key should be dropped")
	}
}

func TestMergeFrom_Commutative(t *testing.T) {
	a := put(t, document.New("a"), "u1", map[string]string{"userTags": `["a"]`, "rawContent": `"from a"`})
	b := put(t, document.New("b"), "u1", map[string]string{"userTags": `["b"]`})
	b = put(t, b, "u2", map[string]string{"rawContent": `"only b"`})

	ab := a.Begin(merge.Default())
	ab.MergeFrom(b)
	left := ab.Commit()

	ba := b.Begin(merge.Default())
	ba.MergeFrom(a)
	right := ba.Commit()

	for _, id := range []string{"u1", "u2"} {
		l, _ := left.Record(id)
		r, _ := right.Record(id)
		if !reflect.DeepEqual(l, r) {
			t.Errorf("%s differs:\nleft:  %v\nright: %v", id, l, r)
		}
	}
	// Same counter, actor "b" > "a".
	if got := value(t, left, "u1", "userTags"); got != `["b"]` {
		t.Errorf("userTags = %s", got)
	}
	if got := value(t, left, "u1", "rawContent"); got != `"from a"` {
		t.Errorf("rawContent = %s", got)
	}
}

func TestMergeFrom_Idempotent(t *testing.T) {
	a := put(t, document.New("a"), "u1", map[string]string{"f": `1`})
	b := put(t, document.New("b"), "u1", map[string]string{"f": `2`})

	txn := a.Begin(merge.Default())
	txn.MergeFrom(b)
	once := txn.Commit()

	txn = once.Begin(merge.Default())
	txn.MergeFrom(b)
	txn.MergeFrom(b)
	twice := txn.Commit()

	r1, _ := once.Record("u1")
	r2, _ := twice.Record("u1")
	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("re-applying changed state: %v vs %v", r1, r2)
	}
}

func TestMergeFrom_AdvancesClock(t *testing.T) {
	remote := document.New("b")
	for i := 0; i < 5; i++ {
		remote = put(t, remote, "u1", map[string]string{"f": `1`})
	}
	txn := document.New("a").Begin(merge.Default())
	txn.MergeFrom(remote)
	stamp := txn.Tick()
	if stamp.Counter != 6 {
		t.Errorf("next local counter = %d, want 6", stamp.Counter)
	}
}

func TestChanges_RecordsPrev(t *testing.T) {
	base := put(t, document.New("a"), "u1", map[string]string{"f": `1`})
	txn := base.Begin(merge.Default())
	txn.PutLocal("u1", map[string][]byte{"f": []byte(`2`)})
	txn.PutLocal("u0", map[string][]byte{"f": []byte(`3`)})

	changes := txn.Changes()
	if len(changes) != 2 || changes[0].ID != "u0" || changes[1].ID != "u1" {
		t.Fatalf("Changes() = %+v", changes)
	}
	if changes[0].Existed {
		t.Error("u0 should be new")
	}
	if !changes[1].Existed || string(changes[1].Prev["f"].Value) != `1` {
		t.Errorf("u1 prev = %+v", changes[1])
	}
}

func TestStampCompare(t *testing.T) {
	a := document.Stamp{Counter: 1, Actor: "z"}
	b := document.Stamp{Counter: 2, Actor: "a"}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 || a.Compare(a) != 0 {
		t.Error("counter must dominate actor")
	}
}
