package battlelog

import (
	"path/filepath"
	"regexp"
	"strings"
)

// LogFileSuffix is the extension of battle log files and anonymized output.
const LogFileSuffix = ".log.json"

// battle-<format>-<number>, optionally followed by -<password> for private rooms
var roomPattern = regexp.MustCompile(`^battle-([a-z0-9]+)-(\d+)`)

// BattleNumber extracts the numeric battle id, trying the room id first and
// then the file name. The second return value is false if neither has one.
func BattleNumber(roomID, fileName string) (string, bool) {
	if m := roomPattern.FindStringSubmatch(roomID); m != nil {
		return m[2], true
	}
	base := strings.TrimSuffix(filepath.Base(fileName), LogFileSuffix)
	if m := roomPattern.FindStringSubmatch(base); m != nil {
		return m[2], true
	}
	return "", false
}

// PublicRoomID drops the private-room suffix of a room id, leaving
// battle-<format>-<number>. Room ids that do not follow that shape are
// returned unchanged.
func PublicRoomID(roomID string) string {
	if m := roomPattern.FindString(roomID); m != "" {
		return m
	}
	return roomID
}

// FormatFromRoom returns the format id embedded in a room id.
func FormatFromRoom(roomID string) (string, bool) {
	if m := roomPattern.FindStringSubmatch(roomID); m != nil {
		return m[1], true
	}
	return "", false
}

// RoomName is the room shown for a log file: its base name without the log suffix.
func RoomName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), LogFileSuffix)
}
