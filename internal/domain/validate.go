package domain

import (
	"context"
	"fmt"
	"slices"
)

// ValidateRecord performs the save-time checks for a record: its own fields
// and the presence of its database on the source server.
func ValidateRecord(ctx context.Context, r *Record, lister DatabaseLister) error {
	if err := r.Validate(); err != nil {
		return err
	}

	dbs, err := lister.ListDatabases(ctx, r.Host, r.Port)
	if err != nil {
		return ConnectivityError(fmt.Sprintf("list databases on %s:%d", r.Host, r.Port), err)
	}

	if !slices.Contains(dbs, r.DatabaseName) {
		return ValidationError(fmt.Sprintf("target %q", r.Name),
			fmt.Errorf("no such database exists: %s", r.DatabaseName))
	}
	return nil
}
