// Package itunes provides an HTTP client for the App Store's public
// storefront endpoints.
//
// # Overview
//
// The client retrieves app metadata the way the App Store web pages and
// apps do: through the storefront search endpoint, the iTunes lookup API,
// the RSS collection feeds, and the HTML app and review pages.
//
// # Usage
//
//	client, err := itunes.NewClient(itunes.WithCountry("gb"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ids, err := client.SearchAppIDs(ctx, "chess", itunes.SearchOptions{Count: 10})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for app := range client.BatchDetails(ctx, itunes.TrackIDs(ids), itunes.BatchOptions{}) {
//	    fmt.Println(app["trackName"])
//	}
//
// # Operations
//
//   - [Client.SearchAppIDs]: app IDs for a search term
//   - [Client.CollectionAppIDs]: app IDs in a chart such as top free iPad apps
//   - [Client.DeveloperApps], [Client.DeveloperAppIDs]: a developer's apps
//   - [Client.SimilarAppIDs]: "customers also bought" suggestions
//   - [Client.AppDetails]: the lookup record of one app
//   - [Client.BatchDetails]: lookup records for many apps, lazily
//   - [Client.Ratings]: the star histogram summed over storefronts
//
// # Errors
//
// Errors carry a code from the errors package. Invalid input fails before
// any request is made. Only detail and rating requests are retried, once,
// after a fixed delay. Batch lookups never fail: a member that cannot be
// retrieved is written to the configured [sink.Sink] and skipped.
//
// Lookups that legitimately come back empty (a developer without apps, a
// page without suggestions, a review page without totals) are not errors.
//
// [sink.Sink]: github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/sink.Sink
package itunes
