// Copyright 2024 The Farm Core Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package farmbuild

import "testing"

func TestValidatorHashModeDetectsContentChange(t *testing.T) {
	fs := &fakeFileSystem{exists: map[string]bool{"a.ts": true}, hashes: map[string]string{"a.ts": "h1"}}
	v := NewValidator(fs, true, false)

	if !v.Valid("a.ts", "h1", 0, nil) {
		t.Fatal("expected valid: hash matches")
	}
	if v.Valid("a.ts", "h2", 0, nil) {
		t.Fatal("expected invalid: hash mismatch")
	}
}

func TestValidatorMissingFileIsInvalid(t *testing.T) {
	fs := &fakeFileSystem{exists: map[string]bool{}}
	v := NewValidator(fs, true, false)

	if v.Valid("gone.ts", "h1", 0, nil) {
		t.Fatal("expected invalid: file missing")
	}
}

func TestValidatorTimestampModeDetectsMtimeChange(t *testing.T) {
	fs := &fakeFileSystem{exists: map[string]bool{"a.ts": true}, mtimes: map[string]int64{"a.ts": 100}}
	v := NewValidator(fs, false, true)

	if !v.Valid("a.ts", "", 100, nil) {
		t.Fatal("expected valid: mtime matches")
	}
	if v.Valid("a.ts", "", 200, nil) {
		t.Fatal("expected invalid: mtime mismatch")
	}
}

func TestValidatorWatchDependencyChangeInvalidates(t *testing.T) {
	fs := &fakeFileSystem{
		exists: map[string]bool{"a.ts": true, "config.json": true},
		hashes: map[string]string{"a.ts": "h1", "config.json": "cfg1"},
	}
	v := NewValidator(fs, true, false)

	watchDeps := map[string]watchDepRecord{"config.json": {hash: "cfg1"}}
	if !v.Valid("a.ts", "h1", 0, watchDeps) {
		t.Fatal("expected valid: watch dependency unchanged")
	}

	fs.hashes["config.json"] = "cfg2"
	if v.Valid("a.ts", "h1", 0, watchDeps) {
		t.Fatal("expected invalid: watch dependency changed")
	}
}

func TestValidatorNoModeEnabledIsAlwaysInvalid(t *testing.T) {
	fs := &fakeFileSystem{exists: map[string]bool{"a.ts": true}}
	v := NewValidator(fs, false, false)

	if v.Valid("a.ts", "", 0, nil) {
		t.Fatal("expected invalid: neither hash nor timestamp mode enabled")
	}
}
