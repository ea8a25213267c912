// Package sim implements per-tick position, altitude, heading and battery
// advancement along a mission's waypoint list, with phase derivation from
// the current waypoint index. Grounded on the original system's
// DroneSimulator (simulator/engine.py): the same travel/survey/return
// distance bookkeeping and resume-from-progress reconstruction, expressed
// as an explicit Advance(dt) state machine instead of a tick() method
// called from a Celery task.
package sim

import (
	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/geo"
)

// Result is the outcome of a single Advance call, the per-tick snapshot
// the mission executor persists and publishes.
type Result struct {
	Position      domain.Location
	Heading       float64
	Speed         float64
	Battery       float64
	WaypointIndex int
	Progress      float64 // 0..100, survey distance only
	Phase         domain.MissionPhase
	Complete      bool
}

// Simulator advances a drone through a fixed waypoint list.
type Simulator struct {
	waypoints []domain.Waypoint
	current   int

	position domain.Location
	altitude float64
	battery  float64
	speedMS  float64
	heading  float64

	distanceTraveled       float64
	surveyDistanceTraveled float64

	totalDistance  float64
	travelDistance float64
	returnDistance float64
	surveyDistance float64

	travelPrefixCount int
	returnSuffixStart int

	drainRatePerMinute float64
}

// Config bundles the tunables a Simulator needs beyond the waypoint list
// itself.
type Config struct {
	SpeedMS            float64
	BatteryDrainPerMin float64
	InitialBattery     float64
}

// New constructs a fresh Simulator starting at the first waypoint, for a
// mission that has not yet begun executing.
func New(fp domain.FlightPath, cfg Config) *Simulator {
	s := newBase(fp, cfg)
	if len(fp.Waypoints) > 0 {
		wp := fp.Waypoints[0]
		s.position = domain.Location{Lat: wp.Lat, Lng: wp.Lng, Alt: 0}
		s.altitude = 0
	}
	return s
}

// Resume reconstructs a Simulator from a persisted mission: currentIndex
// and progress are restored, and surveyDistanceTraveled /
// distanceTraveled are derived from progress per spec §4.5's resume rule
// (surveyDistanceTraveled = progress/100 * surveyDistance; distanceTraveled
// = travelDistance + surveyDistanceTraveled).
func Resume(fp domain.FlightPath, cfg Config, currentIndex int, progress float64) *Simulator {
	s := newBase(fp, cfg)
	s.current = currentIndex
	if s.current >= 0 && s.current < len(fp.Waypoints) {
		wp := fp.Waypoints[s.current]
		s.position = domain.Location{Lat: wp.Lat, Lng: wp.Lng}
		s.altitude = wp.Alt
	}
	s.surveyDistanceTraveled = (progress / 100) * s.surveyDistance
	s.distanceTraveled = s.travelDistance + s.surveyDistanceTraveled
	return s
}

func newBase(fp domain.FlightPath, cfg Config) *Simulator {
	speed := cfg.SpeedMS
	if speed <= 0 {
		speed = 5.0
	}
	drain := cfg.BatteryDrainPerMin
	if drain <= 0 {
		drain = 2.0
	}

	travelCount := fp.TravelPrefixCount()
	returnStart := fp.ReturnSuffixStart()

	total := distanceOf(fp.Waypoints)
	travel := distanceOf(fp.Waypoints[:min(travelCount, len(fp.Waypoints))])
	var ret float64
	if returnStart < len(fp.Waypoints) {
		ret = distanceOf(fp.Waypoints[returnStart:])
	}
	survey := total - travel - ret
	if survey < 0 {
		survey = 0
	}

	return &Simulator{
		waypoints:          fp.Waypoints,
		battery:            cfg.InitialBattery,
		speedMS:            speed,
		drainRatePerMinute: drain,
		totalDistance:      total,
		travelDistance:     travel,
		returnDistance:     ret,
		surveyDistance:     survey,
		travelPrefixCount:  travelCount,
		returnSuffixStart:  returnStart,
	}
}

func distanceOf(wps []domain.Waypoint) float64 {
	var total float64
	for i := 1; i < len(wps); i++ {
		a := geo.Point{Lat: wps[i-1].Lat, Lng: wps[i-1].Lng}
		b := geo.Point{Lat: wps[i].Lat, Lng: wps[i].Lng}
		total += geo.Distance(a, b)
	}
	return total
}

// CurrentIndex returns the waypoint index the simulator is currently
// flying toward (or has just reached).
func (s *Simulator) CurrentIndex() int { return s.current }

// SurveyDistanceTraveled returns accumulated distance within the survey
// segment only, used when rebinding a simulator across a handoff.
func (s *Simulator) SurveyDistanceTraveled() float64 { return s.surveyDistanceTraveled }

// Battery returns the current battery level.
func (s *Simulator) Battery() float64 { return s.battery }

// RebindBattery re-initializes battery against an incoming drone's level
// after a handoff, keeping currentIndex and distance accounting intact —
// per spec §4.7 step 7 ("re-initialize Simulator against the incoming
// drone's battery, keeping currentIndex and surveyDistanceTraveled").
func (s *Simulator) RebindBattery(battery float64) { s.battery = battery }

// phase derives the mission phase from the current waypoint index, per
// spec §4.5's phase-derivation rule.
func (s *Simulator) phase() domain.MissionPhase {
	switch {
	case s.current >= len(s.waypoints):
		return domain.PhaseCompleted
	case s.current < s.travelPrefixCount:
		return domain.PhaseTraveling
	case s.current >= s.returnSuffixStart:
		return domain.PhaseReturning
	default:
		return domain.PhaseSurveying
	}
}

// Advance steps the simulator forward by dt seconds, implementing spec
// §4.5's Advance(dt) algorithm.
func (s *Simulator) Advance(dtSeconds float64) Result {
	if s.current >= len(s.waypoints) {
		return Result{Position: s.position, Heading: s.heading, Speed: s.speedMS, Battery: s.battery, WaypointIndex: s.current, Progress: s.clampedProgress(), Phase: domain.PhaseCompleted, Complete: true}
	}

	target := s.waypoints[s.current]
	targetPt := geo.Point{Lat: target.Lat, Lng: target.Lng}
	posPt := geo.Point{Lat: s.position.Lat, Lng: s.position.Lng}

	d := geo.Distance(posPt, targetPt)
	step := s.speedMS * dtSeconds

	wasSurveying := s.phase() == domain.PhaseSurveying

	if d <= step {
		s.position = domain.Location{Lat: target.Lat, Lng: target.Lng, Alt: target.Alt}
		s.altitude = target.Alt
		s.distanceTraveled += d
		if wasSurveying {
			s.surveyDistanceTraveled += d
		}
		s.current++
	} else {
		f := step / d
		newPt := geo.Interpolate(posPt, targetPt, f)
		s.position = domain.Location{Lat: newPt.Lat, Lng: newPt.Lng, Alt: s.altitude + (target.Alt-s.altitude)*f}
		s.altitude = s.position.Alt
		s.distanceTraveled += step
		if wasSurveying {
			s.surveyDistanceTraveled += step
		}
		s.heading = geo.Bearing(posPt, targetPt)
		s.drainBattery(dtSeconds)
		return s.snapshot(false)
	}

	if s.current < len(s.waypoints) {
		nextTarget := geo.Point{Lat: s.waypoints[s.current].Lat, Lng: s.waypoints[s.current].Lng}
		s.heading = geo.Bearing(geo.Point{Lat: s.position.Lat, Lng: s.position.Lng}, nextTarget)
	}
	s.drainBattery(dtSeconds)

	complete := s.current >= len(s.waypoints)
	return s.snapshot(complete)
}

func (s *Simulator) drainBattery(dtSeconds float64) {
	s.battery -= s.drainRatePerMinute * dtSeconds / 60
	if s.battery < 0 {
		s.battery = 0
	}
}

func (s *Simulator) clampedProgress() float64 {
	if s.surveyDistance <= 0 {
		return 100
	}
	p := 100 * s.surveyDistanceTraveled / s.surveyDistance
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

func (s *Simulator) snapshot(complete bool) Result {
	phase := s.phase()
	if complete {
		phase = domain.PhaseCompleted
	}
	return Result{
		Position:      s.position,
		Heading:       s.heading,
		Speed:         s.speedMS,
		Battery:       s.battery,
		WaypointIndex: s.current,
		Progress:      s.clampedProgress(),
		Phase:         phase,
		Complete:      complete,
	}
}
