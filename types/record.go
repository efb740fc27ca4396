package types

import "fmt"

// Record is the unit held by the cache and persisted by the store.
type Record struct {
	ID     int64   `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Salary float64 `json:"salary" yaml:"salary"`
}

func (r Record) String() string {
	return fmt.Sprintf("Record{id=%d name=%q salary=%.2f}", r.ID, r.Name, r.Salary)
}
