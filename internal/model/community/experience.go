package community

// Experience is a patient's account of living with a treatment.
type Experience struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Medication string `json:"medication"`
	Experience string `json:"experience"`
}

// Seed provides the experiences shown on the community page.
func Seed() []Experience {
	return []Experience{
		{
			ID:         "alice-infliximab",
			Name:       "Alice",
			Medication: "Infliximab",
			Experience: "I've been using Infliximab for 6 months now, and it's made a significant difference in managing my Crohn's symptoms.",
		},
		{
			ID:         "bob-adalimumab",
			Name:       "Bob",
			Medication: "Adalimumab",
			Experience: "Adalimumab has been a game-changer for me. My flare-ups have reduced dramatically since starting this treatment.",
		},
		{
			ID:         "charlie-vedolizumab",
			Name:       "Charlie",
			Medication: "Vedolizumab",
			Experience: "I switched to Vedolizumab after other treatments stopped working. It took a few months, but I'm now seeing improvements.",
		},
	}
}
