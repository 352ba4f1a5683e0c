package domain

import "time"

// Event is a public nightlife event that sells tickets.
type Event struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	City        string    `json:"city,omitempty"`
	StartsAt    time.Time `json:"date"`
	Price       float64   `json:"price"`
	Attendees   int       `json:"attendeesCount,omitempty"`
}

// Vendor is a bar, club or venue listing.
type Vendor struct {
	ID       string  `json:"_id"`
	Name     string  `json:"businessName"`
	Category string  `json:"category,omitempty"`
	City     string  `json:"city,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

// Guide is a paid city guide.
type Guide struct {
	ID     string  `json:"_id"`
	Title  string  `json:"title"`
	CityID string  `json:"cityId,omitempty"`
	Price  float64 `json:"price"`
	Author User    `json:"author"`
}

// Stats is the per-user activity summary.
type Stats struct {
	EventsJoined    int `json:"eventsJoined"`
	TicketsBought   int `json:"ticketsBought"`
	GuidesPurchased int `json:"guidesPurchased"`
	Chats           int `json:"chats"`
}
