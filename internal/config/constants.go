package config

const (
	// DefaultDatabasePath is the default sqlite file for the marketplace database
	DefaultDatabasePath = "./coursemarket.db"

	// DefaultCourseImageURL is used for courses created without an image
	DefaultCourseImageURL = "https://images.unsplash.com/photo-1488590528505-98d2b5aba04b?auto=format&fit=crop"

	// DefaultFeaturedLimit is how many of the newest courses the home page shows
	DefaultFeaturedLimit = 4
)
