// Package fakeapi is a small feed server for the client to talk to.
//
// It serves the endpoints the feed thunks call:
//
//	GET  /fakeApi/posts        newest first
//	POST /fakeApi/posts        create a post
//	POST /fakeApi/posts/{id}   edit title and content
//	GET  /fakeApi/users        by name
//	POST /fakeApi/login        start a session (cookie)
//	POST /fakeApi/logout       end it
//	GET  /metrics              Prometheus exposition
//
// # Storage
//
// Posts and users live in SQLite:
//   - WAL mode: concurrent reads during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - user_version migrations, applied on Open
//
// Posts are ordered by created_at DESC, id ASC COLLATE BINARY so listings
// are deterministic when timestamps tie.
//
// Sessions live in SQLite by default or in Redis (see RedisSessions).
//
// # Seeding
//
// A fresh database can be loaded from a CUE file validated against the
// embedded seed schema (see LoadSeed).
package fakeapi
