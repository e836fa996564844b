package config

const (
	// DefaultDatabasePath is the default path for the sqlite catalog and ledger database
	DefaultDatabasePath = "./ebookstore.db"

	// DefaultBlobDir is where book covers and PDFs are kept when no object store is configured
	DefaultBlobDir = "./blobs"

	// DefaultCurrency is the single currency every charge is made in
	DefaultCurrency = "usd"
)
