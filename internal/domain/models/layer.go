package models

// Layer is a named processing annotation
type Layer struct {
	Name        string
	Description string
}
