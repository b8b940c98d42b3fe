// Package chat drives the per-section AI assist conversation.
package chat

import (
	"github.com/dkoval/workshop-labs/internal/domain"
)

// Script is the scripted prompt sequence for one section: an opening prompt
// plus an ordered list of follow-ups. The sequencer walks it linearly, one
// follow-up per user reply.
type Script struct {
	Section   domain.Section
	Opening   string
	FollowUps []string
}

// DefaultScripts returns the built-in prompt scripts for every section.
func DefaultScripts() map[domain.Section]Script {
	return map[domain.Section]Script{
		domain.SectionIdentity: {
			Section: domain.SectionIdentity,
			Opening: "Let's define your brand identity. What is your brand called, and what does it stand for?",
			FollowUps: []string{
				"What is the mission behind the brand, in one or two sentences?",
				"Which three values should everything you publish reflect?",
			},
		},
		domain.SectionAudience: {
			Section: domain.SectionAudience,
			Opening: "Who are you building this for? Describe your primary audience.",
			FollowUps: []string{
				"What problems keep them up at night?",
				"And what outcome do they most desire?",
			},
		},
		domain.SectionOffer: {
			Section: domain.SectionOffer,
			Opening: "Tell me about your core product or service.",
			FollowUps: []string{
				"What promise does it make to the buyer?",
				"What proof can you point to that the promise holds?",
			},
		},
		domain.SectionStory: {
			Section: domain.SectionStory,
			Opening: "Every brand has an origin. How did yours start?",
			FollowUps: []string{
				"What transformation do customers go through with you?",
			},
		},
		domain.SectionChannels: {
			Section: domain.SectionChannels,
			Opening: "Where does your audience already spend attention? Pick your primary channel.",
			FollowUps: []string{
				"What three content pillars will you publish on repeatedly?",
			},
		},
		domain.SectionReview: {
			Section: domain.SectionReview,
			Opening: "Let's review what you've built. Summarize your workshop in a few sentences.",
			FollowUps: []string{
				"What are your concrete next steps for the coming month?",
			},
		},
	}
}
