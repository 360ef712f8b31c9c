// README: Firebase Admin SDK initialisation for the Realtime Database mirror and FCM push.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Firebase holds the clients built from one Admin SDK app. Database is nil without a database URL.
type Firebase struct {
	Database  *db.Client
	Messaging *messaging.Client
}

// NewFirebase creates the Admin SDK app and its clients.
// If credentialsFile is non-empty it is used as the service-account JSON path;
// otherwise application-default credentials / GOOGLE_APPLICATION_CREDENTIALS are used.
func NewFirebase(ctx context.Context, projectID, databaseURL, credentialsFile string) (*Firebase, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID, DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	out := &Firebase{}
	if out.Messaging, err = app.Messaging(ctx); err != nil {
		return nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}
	if databaseURL != "" {
		if out.Database, err = app.Database(ctx); err != nil {
			return nil, fmt.Errorf("firebase app.Database: %w", err)
		}
	}
	return out, nil
}
