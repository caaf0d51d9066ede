// Package connection resolves store URIs into a Config.
//
// Remote stores are addressed as http(s)://[user[:secret]@]host[:port]/collection
// and local stores as file://path/collection. The user-info sentinels
// __auth_token__ and __x_chroma_token__ select token auth carried in the
// Authorization and X-Chroma-Token headers; any other user selects basic auth.
//
// Query parameters tenant, database, batch_size, limit, offset,
// create_collection, upsert, df and engine override the Defaults supplied by
// the caller:
//
//	cfg, err := connection.Parse("http://localhost:8000/docs?batch_size=50",
//	    connection.WithDefaults(connection.Defaults{BatchSize: 100, Limit: -1}),
//	    connection.WithEnv(os.LookupEnv),
//	)
package connection
