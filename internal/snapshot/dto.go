package snapshot

import (
	"sort"

	"github.com/kailas-cloud/memcore/internal/domain/document"
)

// snapshotDTO is the msgpack shape of a document. Units, fields, indexes and
// buckets are sorted slices so the same document always encodes to the same
// bytes.
type snapshotDTO struct {
	Actor   string     `msgpack:"actor"`
	Clock   uint64     `msgpack:"clock"`
	Units   []unitDTO  `msgpack:"units"`
	Indexes []indexDTO `msgpack:"indexes"`
}

type unitDTO struct {
	ID     string     `msgpack:"id"`
	Fields []fieldDTO `msgpack:"f"`
}

type fieldDTO struct {
	Name    string `msgpack:"n"`
	Value   []byte `msgpack:"v"`
	Counter uint64 `msgpack:"c"`
	Actor   string `msgpack:"a"`
}

type indexDTO struct {
	Name    string      `msgpack:"name"`
	Buckets []bucketDTO `msgpack:"b"`
}

type bucketDTO struct {
	Key string   `msgpack:"k"`
	IDs []string `msgpack:"ids"`
}

func toDTO(d *document.Document) snapshotDTO {
	ids := d.IDs()
	dto := snapshotDTO{
		Actor: d.Actor(),
		Clock: d.Clock(),
		Units: make([]unitDTO, 0, len(ids)),
	}
	for _, id := range ids {
		rec, _ := d.Record(id)
		u := unitDTO{ID: id, Fields: make([]fieldDTO, 0, len(rec))}
		for _, name := range sortedKeys(rec) {
			reg := rec[name]
			u.Fields = append(u.Fields, fieldDTO{
				Name:    name,
				Value:   reg.Value,
				Counter: reg.Stamp.Counter,
				Actor:   reg.Stamp.Actor,
			})
		}
		dto.Units = append(dto.Units, u)
	}
	for _, name := range d.IndexNames() {
		idx := d.Index(name)
		out := indexDTO{Name: name, Buckets: make([]bucketDTO, 0, len(idx))}
		for _, key := range sortedKeys(idx) {
			out.Buckets = append(out.Buckets, bucketDTO{Key: key, IDs: idx[key]})
		}
		dto.Indexes = append(dto.Indexes, out)
	}
	return dto
}

func fromDTO(dto snapshotDTO) *document.Document {
	units := make(map[string]document.Record, len(dto.Units))
	for _, u := range dto.Units {
		rec := make(document.Record, len(u.Fields))
		for _, f := range u.Fields {
			rec[f.Name] = document.Register{
				Value: f.Value,
				Stamp: document.Stamp{Counter: f.Counter, Actor: f.Actor},
			}
		}
		units[u.ID] = rec
	}
	indexes := make(map[string]document.Index, len(dto.Indexes))
	for _, idx := range dto.Indexes {
		buckets := make(document.Index, len(idx.Buckets))
		for _, b := range idx.Buckets {
			buckets[b.Key] = b.IDs
		}
		indexes[idx.Name] = buckets
	}
	return document.Reconstruct(dto.Actor, dto.Clock, units, indexes)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
