package routing

import (
	"reflect"
	"sort"
	"testing"
)

func TestNewStoreRequiresSecret(t *testing.T) {
	if _, err := NewStore("lobby", nil, ""); err == nil {
		t.Fatal("expected error for empty global secret")
	}
}

func TestNewStoreRequiresRoomSource(t *testing.T) {
	if _, err := NewStore("", nil, "g"); err == nil {
		t.Fatal("expected error when neither default room nor projects are configured")
	}
	if _, err := NewStore("lobby", nil, "g"); err != nil {
		t.Fatalf("default room alone should be enough: %v", err)
	}
	projects := map[string]RoomConfiguration{"Proj": {Rooms: []string{"a"}}}
	if _, err := NewStore("", projects, "g"); err != nil {
		t.Fatalf("project configuration alone should be enough: %v", err)
	}
}

func TestResolveKnownProject(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Proj": {Rooms: []string{"a", "b"}, Secret: "s1"},
	}
	s, err := NewStore("lobby", projects, "g")
	if err != nil {
		t.Fatal(err)
	}

	ref := s.Resolve("Proj")
	if !reflect.DeepEqual(ref.Rooms, []string{"a", "b"}) {
		t.Errorf("Rooms: got %v, want [a b]", ref.Rooms)
	}
	if len(ref.SimpleRooms) != 0 {
		t.Errorf("SimpleRooms: got %v, want empty", ref.SimpleRooms)
	}
	if ref.Secret != "s1" {
		t.Errorf("Secret: got %q, want %q (override beats global)", ref.Secret, "s1")
	}
}

func TestResolveUnknownProjectFallsBack(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Proj": {Rooms: []string{"a", "b"}, Secret: "s1"},
	}
	s, err := NewStore("lobby", projects, "g")
	if err != nil {
		t.Fatal(err)
	}

	ref := s.Resolve("Other")
	if !reflect.DeepEqual(ref.Rooms, []string{"lobby"}) {
		t.Errorf("Rooms: got %v, want [lobby]", ref.Rooms)
	}
	if len(ref.SimpleRooms) != 0 {
		t.Errorf("SimpleRooms: got %v, want empty", ref.SimpleRooms)
	}
	if ref.Secret != "g" {
		t.Errorf("Secret: got %q, want global %q", ref.Secret, "g")
	}
}

func TestResolveUnknownProjectNoDefaultRoom(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Proj": {Rooms: []string{"a"}},
	}
	s, err := NewStore("", projects, "g")
	if err != nil {
		t.Fatal(err)
	}

	ref := s.Resolve("Other")
	if len(ref.Rooms) != 0 {
		t.Errorf("Rooms: got %v, want empty", ref.Rooms)
	}
	if ref.Secret != "g" {
		t.Errorf("Secret: got %q, want %q", ref.Secret, "g")
	}
}

func TestResolveProjectWithoutOverrideUsesGlobalSecret(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Proj": {Rooms: []string{"a"}},
	}
	s, err := NewStore("lobby", projects, "g")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Resolve("Proj").Secret; got != "g" {
		t.Errorf("Secret: got %q, want %q", got, "g")
	}
}

func TestResolveSilencedProject(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Quiet": {Rooms: []string{}, SimpleRooms: []string{}, Secret: "s2"},
	}
	s, err := NewStore("lobby", projects, "g")
	if err != nil {
		t.Fatal(err)
	}

	ref := s.Resolve("Quiet")
	if len(ref.Rooms) != 0 || len(ref.SimpleRooms) != 0 {
		t.Errorf("silenced project should notify nobody, got rooms=%v simple=%v", ref.Rooms, ref.SimpleRooms)
	}
	if ref.Secret != "s2" {
		t.Errorf("silenced project keeps its secret override: got %q, want %q", ref.Secret, "s2")
	}
}

func TestAllRoomsDefaultOnly(t *testing.T) {
	s, err := NewStore("room", nil, "g")
	if err != nil {
		t.Fatal(err)
	}
	rooms := s.AllRooms()
	sort.Strings(rooms)
	if !reflect.DeepEqual(rooms, []string{"room"}) {
		t.Errorf("got %v, want [room]", rooms)
	}
}

func TestAllRoomsUnion(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Project":        {Rooms: []string{"a", "b"}},
		"AnotherProject": {Rooms: []string{"b", "c"}},
		"StupidProject":  {SimpleRooms: []string{"d"}},
	}
	s, err := NewStore("", projects, "g")
	if err != nil {
		t.Fatal(err)
	}
	rooms := s.AllRooms()
	sort.Strings(rooms)
	if !reflect.DeepEqual(rooms, []string{"a", "b", "c", "d"}) {
		t.Errorf("got %v, want [a b c d]", rooms)
	}
}

func TestAllRoomsIncludesDefaultRoom(t *testing.T) {
	projects := map[string]RoomConfiguration{
		"Proj": {Rooms: []string{"a", "b"}, Secret: "s1"},
	}
	s, err := NewStore("lobby", projects, "g")
	if err != nil {
		t.Fatal(err)
	}
	rooms := s.AllRooms()
	sort.Strings(rooms)
	if !reflect.DeepEqual(rooms, []string{"a", "b", "lobby"}) {
		t.Errorf("got %v, want [a b lobby]", rooms)
	}
}
