package model

import "time"

// Event represents a pay-per-view live event.  Access to the stream is
// gated by streampasses sold per event.  Events are never hard deleted;
// the IsDeleted flag hides them from purchase and playback.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display title of the event.
//  Description – long form description shown on the event page.
//  StartsAt    – scheduled start of the live stream.
//  IsDeleted   – soft delete flag; deleted events reject redemptions.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
    ID          uint64    // events.id
    Title       string    // events.title
    Description string    // events.description
    StartsAt    time.Time // events.starts_at
    IsDeleted   bool      // events.is_deleted
    CreatedAt   time.Time // events.created_at
    UpdatedAt   time.Time // events.updated_at
}

// EventPrice is the unit price of one streampass for an event in a
// single currency.  Amounts are stored in the currency's minor unit
// (kobo, cents) exactly as reported by the payment provider, so price
// comparisons are exact integer equality.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event this price belongs to.
//  Currency  – ISO currency code (e.g. NGN, USD).
//  Amount    – unit price in minor units.
//  CreatedAt – creation timestamp.
type EventPrice struct {
    ID        uint64    // event_prices.id
    EventID   uint64    // event_prices.event_id
    Currency  string    // event_prices.currency
    Amount    int64     // event_prices.amount
    CreatedAt time.Time // event_prices.created_at
}
