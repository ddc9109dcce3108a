package ingest

import (
	"fmt"

	"github.com/mbd888/fraudscore/internal/frame"
)

// RowKey is the transaction identifier shared by both raw tables.
const RowKey = "TransactionID"

// MergeIdentity left-joins the identity table onto the transaction table.
// Transactions without an identity row keep all identity columns null. A nil
// identity table returns tx unchanged.
func MergeIdentity(tx, id *frame.Table) (*frame.Table, error) {
	if id == nil {
		return tx, nil
	}
	out, err := frame.LeftJoin(tx, id, RowKey)
	if err != nil {
		return nil, fmt.Errorf("merge identity: %w", err)
	}
	return out, nil
}

// Partition names the raw files of one data partition.
type Partition struct {
	TransactionPath string
	IdentityPath    string // optional
}

// Load reads a partition's files and merges them.
func Load(p Partition, opts ReadOptions) (*frame.Table, error) {
	tx, err := ReadCSVFile(p.TransactionPath, opts)
	if err != nil {
		return nil, err
	}
	if p.IdentityPath == "" {
		return tx, nil
	}
	id, err := ReadCSVFile(p.IdentityPath, ReadOptions{Categorical: opts.Categorical})
	if err != nil {
		return nil, err
	}
	return MergeIdentity(tx, id)
}
