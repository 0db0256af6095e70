// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in the store package. All timestamps are persisted in
// UTC; deadlines are civil DATE values compared in the business calendar.
package postgres
