// Package storage provides evidence storage backends: durable SQLite for
// production and an in-memory implementation for tests.
package storage
