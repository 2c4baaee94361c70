package scene

import (
	"errors"
	"testing"
)

func TestAddUniqueNames(t *testing.T) {
	s := New("Scene")
	var names []string
	for i := 0; i < 3; i++ {
		obj, err := NewPrimitive("cube")
		if err != nil {
			t.Fatalf("NewPrimitive() error = %v", err)
		}
		names = append(names, s.Add(obj))
	}
	want := []string{"Cube", "Cube.001", "Cube.002"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d = %q, want %q", i, names[i], want[i])
		}
	}

	if err := s.Delete("Cube.001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	obj, _ := NewPrimitive("CUBE")
	if got := s.Add(obj); got != "Cube.001" {
		t.Errorf("Add() after delete = %q, want Cube.001", got)
	}
	if len(s.Objects()) != 3 {
		t.Errorf("Objects() len = %d, want 3", len(s.Objects()))
	}
}

func TestNotFound(t *testing.T) {
	s := New("Scene")
	if _, err := s.Object("Ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Object() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("Ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := NewPrimitive("TEAPOT"); err == nil {
		t.Error("NewPrimitive(TEAPOT) should fail")
	}
}

func TestMaterials(t *testing.T) {
	s := New("Scene")
	obj, _ := NewPrimitive("SPHERE")
	name := s.Add(obj)

	m, created := s.EnsureMaterial("Red")
	if !created {
		t.Error("EnsureMaterial() should create Red")
	}
	if again, created := s.EnsureMaterial("Red"); created || again != m {
		t.Error("EnsureMaterial() should reuse Red")
	}
	if err := s.AssignMaterial(name, "Red"); err != nil {
		t.Fatalf("AssignMaterial() error = %v", err)
	}
	s.EnsureMaterial("Blue")
	if err := s.AssignMaterial(name, "Blue"); err != nil {
		t.Fatalf("AssignMaterial() error = %v", err)
	}
	if len(obj.Materials) != 1 || obj.Materials[0] != "Blue" {
		t.Errorf("Materials = %v, want [Blue]", obj.Materials)
	}
	if err := s.AssignMaterial(name, "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AssignMaterial(Missing) error = %v", err)
	}
}

func TestWithPrimaryView(t *testing.T) {
	s := New("Scene")
	if err := s.RequirePrimaryView(); err == nil {
		t.Error("RequirePrimaryView() outside the view should fail")
	}

	err := s.WithPrimaryView(func() error { return s.RequirePrimaryView() })
	if err != nil {
		t.Errorf("RequirePrimaryView() inside the view = %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = s.WithPrimaryView(func() error { panic("boom") })
	}()
	if s.InPrimaryView() {
		t.Error("primary view not released after panic")
	}
}

func TestWorldBounds(t *testing.T) {
	obj, _ := NewPrimitive("CUBE")
	obj.Location = Vec3{1, 0, 0}
	obj.Scale = Vec3{2, 1, 1}
	b := obj.WorldBounds()
	if b.Min != (Vec3{-1, -1, -1}) || b.Max != (Vec3{3, 1, 1}) {
		t.Errorf("WorldBounds() = %+v", b)
	}
	if d := b.Dimensions(); d != (Vec3{4, 2, 2}) {
		t.Errorf("Dimensions() = %v", d)
	}
}
