package membership

import (
	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
)

const memdbTable = "members"

// Roster records the last known status of every node seen by the monitor.
type Roster struct {
	db *memdb.MemDB
}

func NewRoster() *Roster {
	db, err := memdb.NewMemDB(&memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			memdbTable: {
				Name: memdbTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name: "id",
						Indexer: &memdb.StringFieldIndex{
							Field: "ID",
						},
						Unique:       true,
						AllowMissing: false,
					},
					"status": {
						Name: "status",
						Indexer: &memdb.IntFieldIndex{
							Field: "Status",
						},
						Unique:       false,
						AllowMissing: false,
					},
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return &Roster{db: db}
}

func (r *Roster) Upsert(node ClusterNode) error {
	tx := r.db.Txn(true)
	defer tx.Abort()
	if err := tx.Insert(memdbTable, &node); err != nil {
		return errors.Wrap(err, "failed to insert member")
	}
	tx.Commit()
	return nil
}

func (r *Roster) ByID(id string) (ClusterNode, error) {
	tx := r.db.Txn(false)
	defer tx.Abort()
	raw, err := tx.First(memdbTable, "id", id)
	if err != nil {
		return ClusterNode{}, errors.Wrap(err, "failed to lookup member")
	}
	if raw == nil {
		return ClusterNode{}, ErrMemberNotFound
	}
	return *raw.(*ClusterNode), nil
}

// All returns the known members ordered by id.
func (r *Roster) All() ([]ClusterNode, error) {
	return r.list("id")
}

func (r *Roster) ByStatus(status Status) ([]ClusterNode, error) {
	return r.list("status", status)
}

func (r *Roster) list(index string, args ...interface{}) ([]ClusterNode, error) {
	tx := r.db.Txn(false)
	defer tx.Abort()
	iterator, err := tx.Get(memdbTable, index, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list members")
	}
	out := []ClusterNode{}
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		out = append(out, *raw.(*ClusterNode))
	}
	return out, nil
}
