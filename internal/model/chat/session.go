package chat

import "time"

// Greeting opens every new check-in transcript.
const Greeting = "Hello! How are you feeling today?"

// Profile holds the onboarding answers the patient gave.
type Profile struct {
	Condition string `json:"condition,omitempty"`
}

// Session captures one anonymous check-in conversation.
type Session struct {
	ID        string    `json:"id"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
}
