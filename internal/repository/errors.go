// Package repository implements the persistent store on top of
// database/sql. Repositories translate driver-level failures into the
// sentinel errors below so the service layer never inspects SQL
// details. ErrNotFound covers missing rows; ErrDuplicate covers
// unique-constraint violations such as reusing an email address.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a unique
// constraint.
var ErrDuplicate = errors.New("record already exists")
