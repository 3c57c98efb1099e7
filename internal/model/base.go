package model

import "github.com/google/uuid"

// assignID gives a record a client-side UUID so inserts do not depend on a
// database-side generator.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
