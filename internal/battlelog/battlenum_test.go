package battlelog

import "testing"

func TestBattleNumber(t *testing.T) {
	tests := []struct {
		name     string
		roomID   string
		fileName string
		want     string
		wantOK   bool
	}{
		{"from room", "battle-gen8ou-1234", "whatever.log.json", "1234", true},
		{"private room", "battle-gen8ou-1234-abcdefpw", "", "1234", true},
		{"from file", "", "/logs/2021-09-29/battle-gen8randombattle-99.log.json", "99", true},
		{"room wins over file", "battle-gen8ou-1", "battle-gen8ou-2.log.json", "1", true},
		{"none", "lobby", "notes.log.json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BattleNumber(tt.roomID, tt.fileName)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("BattleNumber(%q, %q) = %q, %v; want %q, %v",
					tt.roomID, tt.fileName, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPublicRoomID(t *testing.T) {
	tests := map[string]string{
		"battle-gen8ou-1234-secretpw": "battle-gen8ou-1234",
		"battle-gen8ou-1234":          "battle-gen8ou-1234",
		"lobby":                       "lobby",
	}
	for in, want := range tests {
		if got := PublicRoomID(in); got != want {
			t.Errorf("PublicRoomID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatFromRoom(t *testing.T) {
	if f, ok := FormatFromRoom("battle-gen9vgc2024-5"); !ok || f != "gen9vgc2024" {
		t.Errorf("FormatFromRoom = %q, %v", f, ok)
	}
	if _, ok := FormatFromRoom("lobby"); ok {
		t.Error("FormatFromRoom(lobby) should fail")
	}
}

func TestRoomName(t *testing.T) {
	if got := RoomName("/a/b/battle-gen8ou-3.log.json"); got != "battle-gen8ou-3" {
		t.Errorf("RoomName = %q", got)
	}
}
