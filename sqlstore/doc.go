// Package sqlstore provides a SQLite backend for ordering domains.
//
// Every Update runs inside a transaction that takes the database write lock
// when it begins (_txlock=immediate), so the read-plan-write cycle of one
// operation is serialized against every other writer, including other
// processes sharing the file. Appending therefore cannot race: two creates
// on the same domain always see each other's rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: a single writer per process
package sqlstore
