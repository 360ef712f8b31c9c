package mirror

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/db"

	"weride/internal/types"
)

// Firebase writes each snapshot to rides/{rideId} in the Realtime Database.
type Firebase struct {
	client *db.Client
	root   string
}

func NewFirebase(client *db.Client) *Firebase {
	return &Firebase{client: client, root: "rides"}
}

func (f *Firebase) Publish(ctx context.Context, rideID types.ID, s Snapshot) error {
	ref := f.client.NewRef(f.root + "/" + string(rideID))
	if err := ref.Set(ctx, s); err != nil {
		return fmt.Errorf("firebase set ride %s: %w", rideID, err)
	}
	return nil
}
