// Package mongo implements store.Store using the official MongoDB
// driver. Suitable for distributed deployments requiring horizontal
// scaling and flexible schema evolution.
//
// The caller owns the *mongo.Client lifecycle -- the store never
// disconnects it. Pass a database handle through the constructor:
//
//	import (
//	    mongod "go.mongodb.org/mongo-driver/v2/mongo"
//	    "github.com/xraph/sentinel/store/mongo"
//	)
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("sentinel"))
//	store.Migrate(ctx)
package mongo
