// Package sim implements the synthetic-agent activity simulator: a
// population of autonomous agents that join rooms, post templated
// messages, respond to real users, send prayer requests, and wander,
// driven by a per-simulation timer and weighted behavior selection.
package sim

import (
	"errors"
	"fmt"
	"time"
)

// Personality conditions which template bank an agent draws from.
type Personality uint8

const (
	PersonalityEncourager Personality = iota
	PersonalitySeeker
	PersonalityPrayerWarrior
	PersonalityListener
)

// NumPersonalities is the number of personality categories.
const NumPersonalities = 4

func (p Personality) String() string {
	switch p {
	case PersonalityEncourager:
		return "encourager"
	case PersonalitySeeker:
		return "seeker"
	case PersonalityPrayerWarrior:
		return "prayer_warrior"
	case PersonalityListener:
		return "listener"
	default:
		return "unknown"
	}
}

// ParsePersonality maps a config string to a Personality.
func ParsePersonality(s string) (Personality, error) {
	switch s {
	case "encourager":
		return PersonalityEncourager, nil
	case "seeker":
		return PersonalitySeeker, nil
	case "prayer_warrior":
		return PersonalityPrayerWarrior, nil
	case "listener":
		return PersonalityListener, nil
	default:
		return 0, fmt.Errorf("unknown personality %q", s)
	}
}

// ActivityLevel controls the scheduler tick frequency.
type ActivityLevel uint8

const (
	ActivityLow ActivityLevel = iota
	ActivityMedium
	ActivityHigh
)

// TickInterval returns the scheduler interval for the tier.
func (l ActivityLevel) TickInterval() time.Duration {
	switch l {
	case ActivityHigh:
		return 15 * time.Second
	case ActivityMedium:
		return 45 * time.Second
	default:
		return 120 * time.Second
	}
}

func (l ActivityLevel) String() string {
	switch l {
	case ActivityHigh:
		return "high"
	case ActivityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParseActivityLevel maps a config string to an ActivityLevel.
func ParseActivityLevel(s string) (ActivityLevel, error) {
	switch s {
	case "low":
		return ActivityLow, nil
	case "medium":
		return ActivityMedium, nil
	case "high":
		return ActivityHigh, nil
	default:
		return 0, fmt.Errorf("unknown activity level %q", s)
	}
}

// ResponseSpeed controls the artificial delay before a scheduled send
// becomes visible.
type ResponseSpeed uint8

const (
	SpeedInstant ResponseSpeed = iota
	SpeedRealistic
	SpeedSlow
)

// Delay returns the artificial send delay for this tier. uniform must
// return values in [0, 1).
func (s ResponseSpeed) Delay(uniform func() float64) time.Duration {
	switch s {
	case SpeedInstant:
		return 0
	case SpeedSlow:
		return 15*time.Second + time.Duration(uniform()*25*float64(time.Second))
	default:
		return 2*time.Second + time.Duration(uniform()*6*float64(time.Second))
	}
}

func (s ResponseSpeed) String() string {
	switch s {
	case SpeedInstant:
		return "instant"
	case SpeedSlow:
		return "slow"
	default:
		return "realistic"
	}
}

// ParseResponseSpeed maps a config string to a ResponseSpeed.
func ParseResponseSpeed(s string) (ResponseSpeed, error) {
	switch s {
	case "instant":
		return SpeedInstant, nil
	case "realistic":
		return SpeedRealistic, nil
	case "slow":
		return SpeedSlow, nil
	default:
		return 0, fmt.Errorf("unknown response speed %q", s)
	}
}

// BehaviorFlags enables or disables each action category for a
// simulation's agents. All false is valid: agents simply never act.
type BehaviorFlags struct {
	Join    bool `json:"join"`
	Send    bool `json:"send"`
	Respond bool `json:"respond"`
	Prayer  bool `json:"prayer"`
	Move    bool `json:"move"`
}

// PersonalityMix holds the four mix ratios. They are proportions, not
// probabilities; a zero sum yields a population of encouragers.
type PersonalityMix struct {
	Encourager    float64 `json:"encourager"`
	Seeker        float64 `json:"seeker"`
	PrayerWarrior float64 `json:"prayer_warrior"`
	Listener      float64 `json:"listener"`
}

func (m PersonalityMix) ratios() [NumPersonalities]float64 {
	return [NumPersonalities]float64{m.Encourager, m.Seeker, m.PrayerWarrior, m.Listener}
}

// Config is the resolved input to Registry.Start.
type Config struct {
	Population int            `json:"population"`
	CenterLat  float64        `json:"center_lat"`
	CenterLng  float64        `json:"center_lng"`
	RadiusM    float64        `json:"radius_m"`
	Speed      ResponseSpeed  `json:"-"`
	Activity   ActivityLevel  `json:"-"`
	Mix        PersonalityMix `json:"personality_mix"`
	Behaviors  BehaviorFlags  `json:"behaviors"`
}

// Validate rejects inputs the simulator cannot run with. Disabled
// behaviors and zero-sum mixes are allowed; such agents never act.
func (c Config) Validate() error {
	if c.Population < 1 {
		return errors.New("population must be at least 1")
	}
	if c.RadiusM < 0 {
		return errors.New("spread radius must not be negative")
	}
	for _, r := range c.Mix.ratios() {
		if r < 0 {
			return errors.New("personality ratios must not be negative")
		}
	}
	return nil
}

// Agent is one simulated participant. At the data layer it is a user row
// like any other; this struct is the in-memory roster entry.
type Agent struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name"`
	Personality  Personality   `json:"personality"`
	Activity     ActivityLevel `json:"activity"`
	Speed        ResponseSpeed `json:"speed"`
	Behaviors    BehaviorFlags `json:"behaviors"`
	Lat          float64       `json:"lat"`
	Lng          float64       `json:"lng"`
	LastActive   time.Time     `json:"last_active"`
	SimulationID string        `json:"simulation_id"`
}
