package domain

import (
	"time"
)

// RowKeyLayout is the creation-timestamp format used as the row key,
// second precision (ddMMyyyyHHmmss).
const RowKeyLayout = "02012006150405"

// RoomCount is the number of timed rooms in a session.
const RoomCount = 3

// SentinelPartitionKey marks rows that must never be returned by
// team-name listings. Partition keys are assigned from a counter
// starting at 1, so no real record carries it.
const SentinelPartitionKey = "0"

// Session is one team's run through the timed multi-room activity.
// The partition/row key pair is immutable once created. TotalRoomTime
// and TotalSessionTime are derived fields, recomputed only by the
// explicit recalculation operations.
type Session struct {
	PartitionKey     string    `json:"partition_key" mapstructure:"PartitionKey"`
	RowKey           string    `json:"row_key" mapstructure:"RowKey"`
	TeamName         string    `json:"team_name" mapstructure:"TeamName"`
	MemberCount      int       `json:"member_count" mapstructure:"MemberCount"`
	RoomTime1        int       `json:"room_time_1" mapstructure:"RoomTime1"`
	RoomTime2        int       `json:"room_time_2" mapstructure:"RoomTime2"`
	RoomTime3        int       `json:"room_time_3" mapstructure:"RoomTime3"`
	TotalRoomTime    int       `json:"total_room_time" mapstructure:"TotalRoomTime"`
	SolutionTime     int       `json:"solution_time" mapstructure:"SolutionTime"`
	TotalSessionTime int       `json:"total_session_time" mapstructure:"TotalSessionTime"`
	PendingOrder     int       `json:"pending_order" mapstructure:"PendingOrder"`
	Version          int64     `json:"version" mapstructure:"Version"`
	Timestamp        time.Time `json:"timestamp" mapstructure:"Timestamp"`
}

// NewSession builds a zero-initialized session record for a team.
// The partition key comes from the store-managed session counter and
// the row key from the creation instant.
func NewSession(partitionKey string, createdAt time.Time, teamName string, memberCount, pendingOrder int) *Session {
	return &Session{
		PartitionKey: partitionKey,
		RowKey:       createdAt.UTC().Format(RowKeyLayout),
		TeamName:     teamName,
		MemberCount:  memberCount,
		PendingOrder: pendingOrder,
		Version:      1,
		Timestamp:    createdAt.UTC(),
	}
}

// SetRoomTime assigns the elapsed time for one room.
// Room numbers outside 1..RoomCount are rejected.
func (s *Session) SetRoomTime(room, seconds int) error {
	switch room {
	case 1:
		s.RoomTime1 = seconds
	case 2:
		s.RoomTime2 = seconds
	case 3:
		s.RoomTime3 = seconds
	default:
		return Validationf("room number %d is not one of 1..%d", room, RoomCount)
	}
	return nil
}

// RoomTimeSum returns the current sum of the three per-room times.
// It does not touch TotalRoomTime; callers persist the recalculated
// value explicitly.
func (s *Session) RoomTimeSum() int {
	return s.RoomTime1 + s.RoomTime2 + s.RoomTime3
}
