// Package telerelay forwards messages between Telegram chats across several
// user accounts, using the MTProto protocol via gotd/td.
//
// Each configured session runs an Account that subscribes to the source chats
// of every route. For each new message in a source chat the route's settings
// are re-read from the configuration file, then the message is:
//   - filtered by keywords (exclusion before inclusion) and number thresholds
//   - transformed with an optional prefix and suffix
//   - delivered to the destination, retrying once with channel addressing
//
// A Fleet owns all accounts and rebuilds them when any account receives the
// /reload command.
//
// Basic usage:
//
//	fleet, err := telerelay.NewFleet(telerelay.FleetConfig{
//	    ConfigPath: "config.json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := fleet.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Sessions are created once, interactively, with Login (or the
// `telerelay session create` command).
package telerelay
