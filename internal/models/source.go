package models

import "time"

// SourceKind identifies the connector type of a data source.
type SourceKind string

const (
	SourceKindMySQL    SourceKind = "mysql"
	SourceKindPostgres SourceKind = "postgres"
	SourceKindKafka    SourceKind = "kafka"
	SourceKindS3       SourceKind = "s3"
)

// Valid reports whether k is a known connector type.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindMySQL, SourceKindPostgres, SourceKindKafka, SourceKindS3:
		return true
	}
	return false
}

// DataSource is a registered connection used by workflows and sync tasks.
// Credentials is an age-encrypted blob and never leaves the server decrypted.
type DataSource struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        SourceKind `json:"kind"`
	Credentials []byte     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}
