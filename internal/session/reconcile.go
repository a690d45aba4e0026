package session

import "github.com/golang/glog"

// The server can insert and remove frames and lines while a session is open. Sessions
// follow their target the same way the local edit buffer does: targets after the change
// are reindexed, and a session whose own target was removed is cancelled.

// OnFrameRemoved reconciles open sessions with the removal of (line, frame).
func (t *Timeline) OnFrameRemoved(line, frame int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shift := func(l, f *int) bool {
		if *l != line {
			return true
		}
		switch {
		case *f == frame:
			return false
		case *f > frame:
			*f--
		}
		return true
	}
	if s := t.edit; s != nil && !shift(&s.Line, &s.Frame) {
		glog.V(1).Infof("session %s: target %d:%d removed", s.id, line, frame)
		t.edit = nil
	}
	if s := t.resize; s != nil && !shift(&s.Line, &s.Frame) {
		glog.V(1).Infof("session %s: target %d:%d removed", s.id, line, frame)
		t.cancelResizeLocked()
	}
	if s := t.drag; s != nil {
		if !shift(&s.SourceLine, &s.SourceFrame) {
			glog.V(1).Infof("session %s: source %d:%d removed", s.id, line, frame)
			t.drag = nil
		} else if s.TargetLine == line && s.TargetFrame > frame {
			s.TargetFrame--
		}
	}
}

// OnLineRemoved reconciles open sessions with the removal of line.
func (t *Timeline) OnLineRemoved(line int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shift := func(l *int) bool {
		switch {
		case *l == line:
			return false
		case *l > line:
			*l--
		}
		return true
	}
	if s := t.edit; s != nil && !shift(&s.Line) {
		glog.V(1).Infof("session %s: line %d removed", s.id, line)
		t.edit = nil
	}
	if s := t.resize; s != nil && !shift(&s.Line) {
		glog.V(1).Infof("session %s: line %d removed", s.id, line)
		t.cancelResizeLocked()
	}
	if s := t.drag; s != nil {
		if !shift(&s.SourceLine) {
			glog.V(1).Infof("session %s: line %d removed", s.id, line)
			t.drag = nil
		} else if !shift(&s.TargetLine) {
			s.TargetLine, s.TargetFrame = s.SourceLine, s.SourceFrame
		}
	}
}

// OnFrameInserted reconciles open sessions with a frame inserted before (line, frame).
func (t *Timeline) OnFrameInserted(line, frame int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shift := func(l, f *int) {
		if *l == line && *f >= frame {
			*f++
		}
	}
	if s := t.edit; s != nil {
		shift(&s.Line, &s.Frame)
	}
	if s := t.resize; s != nil {
		shift(&s.Line, &s.Frame)
	}
	if s := t.drag; s != nil {
		shift(&s.SourceLine, &s.SourceFrame)
		shift(&s.TargetLine, &s.TargetFrame)
	}
}

// OnLineInserted reconciles open sessions with a line inserted at index line.
func (t *Timeline) OnLineInserted(line int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shift := func(l *int) {
		if *l >= line {
			*l++
		}
	}
	if s := t.edit; s != nil {
		shift(&s.Line)
	}
	if s := t.resize; s != nil {
		shift(&s.Line)
	}
	if s := t.drag; s != nil {
		shift(&s.SourceLine)
		shift(&s.TargetLine)
	}
}

// Revalidate cancels sessions whose target no longer exists in the current scene and pulls
// a drop target back within its line. It is called after a full scene replacement.
func (t *Timeline) Revalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	sc := t.scene.Current()
	if s := t.edit; s != nil {
		if _, ok := sc.Frame(s.Line, s.Frame); !ok {
			t.edit = nil
		}
	}
	if s := t.resize; s != nil {
		if _, ok := sc.Frame(s.Line, s.Frame); !ok {
			t.cancelResizeLocked()
		}
	}
	if s := t.drag; s != nil {
		if _, ok := sc.Frame(s.SourceLine, s.SourceFrame); !ok {
			t.drag = nil
		} else if s.TargetLine >= sc.LineCount() {
			s.TargetLine, s.TargetFrame = s.SourceLine, s.SourceFrame
		} else {
			s.TargetFrame = clampTarget(sc, s.Drag, s.TargetLine, s.TargetFrame)
		}
	}
}
