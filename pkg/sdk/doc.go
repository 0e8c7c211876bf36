/*
Package sdk provides the TinyPMF client library for tracking user
activity from Go applications.

# Quick Start

Install TinyPMF in your app:

	go get github.com/tinypmf/tinypmf

Track activity from your application:

	package main

	import (
	    "context"
	    "log"

	    "github.com/tinypmf/tinypmf/pkg/sdk"
	)

	func main() {
	    // Create TinyPMF client
	    client, err := sdk.New(sdk.ClientConfig{
	        Endpoint: "http://localhost:8080/v1/events",
	    })
	    if err != nil {
	        log.Fatal(err)
	    }

	    // Start client (begins batching and sending events)
	    client.Start(context.Background())
	    defer client.Stop()

	    // One line wherever a user does something that counts as "active"
	    client.Track("user_123")

	    // Weighted events carry revenue or usage quantity
	    client.TrackQuantity("user_123", 29.99)
	}

The server assigns each entity to the cohort of its first event and
computes retention matrices and growth accounting over everything you
send.

# Choosing an Entity ID

The entity ID is whatever you want to measure retention of: a user ID,
an account ID, a workspace ID. Use a stable identifier, not an email or
display name that can change. Retention is only as good as the IDs are
stable.

# Simple vs Weighted Tracking

Track() records bare activity: the entity was active at this time.
That feeds active-user retention (DAU/WAU/MAU style).

TrackQuantity() attaches a weight: revenue, API calls, minutes watched.
That feeds weighted retention and revenue growth accounting (expansion,
contraction, churned revenue).

TrackAt() takes an explicit timestamp for backfilling history:

	// Import last year's subscription payments
	client.TrackAt("acct_42", 99.00, paymentDate)

# Batching & Flushing

The SDK batches events and sends them every 5 seconds (configurable):

	client, err := sdk.New(sdk.ClientConfig{
	    FlushEvery: 10 * time.Second,
	})

Events are buffered in memory until:
 1. FlushEvery duration elapses (default: 5 seconds), OR
 2. Batch reaches 1000 events, OR
 3. You call client.Flush() manually

Call Flush() before exiting if you need guaranteed delivery; Stop()
flushes pending events as part of shutdown.

# Error Handling

The SDK handles errors gracefully:

  - Network errors: logged but don't crash your app
  - Server errors (5xx): events are dropped (not retried)
  - Client errors (4xx): events are dropped (invalid data)

# Best Practices

 1. Create one Client per application
 2. Always call Start() before tracking
 3. Always call Stop() on shutdown (defer client.Stop())
 4. Track the action that defines "active" for your product, not every
    click
 5. Keep entity IDs stable across sessions and devices
*/
package sdk
