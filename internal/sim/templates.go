// Personality-keyed message banks. Deliberately scripted, not generative:
// every message an agent can say is listed here.
package sim

import "strings"

// templateBank holds the three sub-banks for one personality.
type templateBank struct {
	General        []string
	Response       []string
	PrayerResponse []string
}

var personalityBanks = map[Personality]templateBank{
	PersonalityEncourager: {
		General: []string{
			"Hey everyone! Hope your week is off to a great start 🙌",
			"Just wanted to say this group has been such a blessing to me.",
			"Anyone up for a walk-and-talk this weekend?",
			"You all inspire me more than you know. Keep going!",
			"Grateful for this little community. Seriously.",
			"Good morning friends! Praying today brings each of you some light.",
		},
		Response: []string{
			"Love that! Thanks for sharing 💛",
			"You've got this. We're all behind you!",
			"That really encouraged me today, thank you.",
			"So glad you posted this. Needed it!",
			"Yes!! Exactly this.",
		},
		PrayerResponse: []string{
			"Praying for you right now. You're not alone in this. 🙏",
			"Lifting you up today. Hang in there, friend.",
			"Just prayed for you, keep us posted on how it goes.",
			"Standing with you in prayer. This community has your back.",
		},
	},
	PersonalitySeeker: {
		General: []string{
			"Still pretty new here, what do you all usually do at meetups?",
			"Been thinking a lot about purpose lately. Anyone else?",
			"Read something this morning that really made me stop and think.",
			"Honest question: how do you all make time for community?",
			"First time posting here, glad to have found this group.",
			"What's one thing that helped you when life felt uncertain?",
		},
		Response: []string{
			"Huh, never thought about it that way before.",
			"Can you say more about that? Genuinely curious.",
			"That resonates with me more than I expected.",
			"Thanks for being so open about this.",
			"I'm still working through this stuff, but posts like this help.",
		},
		PrayerResponse: []string{
			"I'm not great with words for this, but I'm thinking of you.",
			"That sounds really heavy. Hoping things turn around soon.",
			"Count me in as someone pulling for you.",
			"Sending you whatever strength I've got today.",
		},
	},
	PersonalityPrayerWarrior: {
		General: []string{
			"Starting a prayer chain this week, drop your requests below.",
			"Set my alarm 15 minutes early to pray for this group. Worth it.",
			"\"Do not be anxious about anything...\" been sitting with that verse all day.",
			"Anyone want a prayer partner for the month? I'm in.",
			"Praying over every name in this room tonight.",
			"What can I be praying about for you all this week?",
		},
		Response: []string{
			"Amen to that!",
			"This is exactly why this group exists. Thank you.",
			"Adding this to my prayer list tonight.",
			"God's timing is something else. Needed to read this today.",
			"Thank you for your faithfulness in sharing this.",
		},
		PrayerResponse: []string{
			"On my knees for you tonight, friend. 🙏 Don't lose heart.",
			"Praying bold prayers over this. Expecting good news.",
			"Just stopped what I was doing to pray for you.",
			"Adding you to my morning prayer list. You are covered.",
		},
	},
	PersonalityListener: {
		General: []string{
			"Quiet day over here. How is everyone really doing?",
			"No agenda, just checking in on this group today.",
			"If anyone needs to talk this week, my door's open.",
			"Reading everyone's updates, keep them coming.",
			"Some weeks you talk, some weeks you listen. This is a listening week.",
			"Grateful for everyone who shares here, even the hard stuff.",
		},
		Response: []string{
			"I hear you. That sounds like a lot to carry.",
			"Thanks for trusting us with that.",
			"No advice from me, just wanted you to know I read this.",
			"Take whatever time you need. We're here.",
			"That took courage to post.",
		},
		PrayerResponse: []string{
			"I'm here if you want to talk it through. Praying meanwhile.",
			"You don't have to go through this alone. I'm praying for you.",
			"Holding you in prayer today. No need to reply.",
			"Whatever happens, this group isn't going anywhere. Praying.",
		},
	},
}

// Generator picks scripted messages from the personality banks.
type Generator struct {
	rng Rand
}

// NewGenerator creates a message generator drawing from rng.
func NewGenerator(rng Rand) *Generator {
	return &Generator{rng: rng}
}

func (g *Generator) pick(bank []string) string {
	if len(bank) == 0 {
		return ""
	}
	return bank[g.rng.Intn(len(bank))]
}

// General returns a room message for the personality.
func (g *Generator) General(p Personality) string {
	return g.pick(personalityBanks[p].General)
}

// Response returns a reply to an ordinary message.
func (g *Generator) Response(p Personality) string {
	return g.pick(personalityBanks[p].Response)
}

// PrayerResponse returns a reply to a message asking for prayer or help.
func (g *Generator) PrayerResponse(p Personality) string {
	return g.pick(personalityBanks[p].PrayerResponse)
}

// ResponseFor branches on the message content: prayer/help keywords get
// the prayer-response bank, everything else the general response bank.
func (g *Generator) ResponseFor(p Personality, content string) string {
	lower := strings.ToLower(content)
	if strings.Contains(lower, "pray") || strings.Contains(lower, "help") {
		return g.PrayerResponse(p)
	}
	return g.Response(p)
}

// PrayerRequestText returns the text for an outgoing prayer request.
func (g *Generator) PrayerRequestText(p Personality) string {
	requests := []string{
		"Hi! I'd love to be prayer partners this month if you're open to it.",
		"Would you pray with me this week? Happy to pray for you too.",
		"Felt nudged to reach out, can I add you to my prayer list?",
		"Looking for someone to trade prayer requests with. Interested?",
	}
	return g.pick(requests)
}
