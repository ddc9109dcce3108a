package uid

import (
	"fmt"
	"slices"

	"github.com/mbd888/fraudscore/internal/frame"
)

// CleanStep is one value-nulling pass applied to the cleaned columns.
type CleanStep string

const (
	// DropPartitionOnly nulls values seen in only one of train or score.
	DropPartitionOnly CleanStep = "drop_partition_only"
	// DropRare nulls values whose pooled count is at most RareMaxCount.
	DropRare CleanStep = "drop_rare"
)

// CleanConfig orders the cleaning passes. Each step counts only values that
// survived the steps before it.
type CleanConfig struct {
	Columns      []string    `yaml:"columns" json:"columns"`
	Steps        []CleanStep `yaml:"steps" json:"steps"`
	RareMaxCount int         `yaml:"rare_max_count" json:"rareMaxCount"`
}

// DefaultCleanConfig cleans the card fields of the default ladder.
func DefaultCleanConfig() CleanConfig {
	return CleanConfig{
		Columns:      []string{"card1", "card2", "card3", "card5"},
		Steps:        []CleanStep{DropPartitionOnly, DropRare},
		RareMaxCount: 2,
	}
}

func (c CleanConfig) Validate() error {
	for _, s := range c.Steps {
		switch s {
		case DropPartitionOnly, DropRare:
		default:
			return fmt.Errorf("unknown clean step %q", s)
		}
	}
	if c.RareMaxCount < 0 {
		return fmt.Errorf("rare_max_count must be >= 0, got %d", c.RareMaxCount)
	}
	return nil
}

// fitAllowed runs the cleaning steps over the pooled column and returns the
// sorted surviving values. isTrain marks the training rows; when one
// partition is empty DropPartitionOnly is a no-op.
func fitAllowed(c frame.Column, isTrain []bool, cfg CleanConfig) []string {
	alive := make(map[string]bool)
	for i := 0; i < c.Len(); i++ {
		if k, ok := c.Key(i); ok {
			alive[k] = true
		}
	}

	nTrain := 0
	for _, tr := range isTrain {
		if tr {
			nTrain++
		}
	}
	bothPartitions := nTrain > 0 && nTrain < len(isTrain)

	for _, step := range cfg.Steps {
		switch step {
		case DropPartitionOnly:
			if !bothPartitions {
				continue
			}
			inTrain := make(map[string]bool)
			inScore := make(map[string]bool)
			for i := 0; i < c.Len(); i++ {
				k, ok := c.Key(i)
				if !ok || !alive[k] {
					continue
				}
				if isTrain[i] {
					inTrain[k] = true
				} else {
					inScore[k] = true
				}
			}
			for k := range alive {
				if !inTrain[k] || !inScore[k] {
					delete(alive, k)
				}
			}
		case DropRare:
			counts := make(map[string]int)
			for i := 0; i < c.Len(); i++ {
				if k, ok := c.Key(i); ok && alive[k] {
					counts[k]++
				}
			}
			for k, n := range counts {
				if n <= cfg.RareMaxCount {
					delete(alive, k)
				}
			}
		}
	}

	out := make([]string, 0, len(alive))
	for k := range alive {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
