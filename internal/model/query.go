package model

import "time"

// Query is one benchmark question from the query library.
type Query struct {
	ID          int64     `json:"id"`
	Text        string    `json:"query_text"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuerySeed is a library entry before it has been stored.
type QuerySeed struct {
	Text        string `yaml:"query_text" json:"query_text"`
	Category    string `yaml:"category" json:"category"`
	Subcategory string `yaml:"subcategory" json:"subcategory,omitempty"`
}
