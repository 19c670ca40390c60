package models

import "sort"

// Role is a tag the classifier assigns to an uploaded case document.
type Role string

const (
	RolePetition       Role = "petition"
	RoleRebuttalTarget Role = "rebuttal_target"
	RoleEvidence       Role = "evidence"
	RoleOther          Role = "other"
)

// MaxDocuments is the number of documents a drafting session accepts.
const MaxDocuments = 10

// Document is one uploaded case document with its already-extracted text.
// RoleTags is assigned once by the classifier and never mutated afterwards.
type Document struct {
	Name     string `firestore:"name" json:"name"`
	Content  string `firestore:"content" json:"content"`
	FileType string `firestore:"fileType" json:"fileType"`
	RoleTags []Role `firestore:"roleTags,omitempty" json:"roleTags,omitempty"`
}

// HasRole reports whether the document carries the given tag.
func (d Document) HasRole(r Role) bool {
	for _, tag := range d.RoleTags {
		if tag == r {
			return true
		}
	}
	return false
}

// SortRoles orders tags so that equal tag sets always serialize the same way.
func SortRoles(roles []Role) []Role {
	out := append([]Role(nil), roles...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
