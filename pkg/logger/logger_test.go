package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with text output", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Named("test"), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When initialized with json output", func() {
			So(InitWithFormat(FormatJSON), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
		})

		Convey("When the format is unknown", func() {
			So(InitWithFormat("xml"), ShouldNotBeNil)
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given a json logger on a buffer", t, func() {
		So(SetLevelString("info"), ShouldBeNil)
		var buf bytes.Buffer
		l, err := New(&buf, FormatJSON)
		So(err, ShouldBeNil)

		Convey("When logging with fields", func() {
			l.Named("scoring").Info(context.Background(), "classified",
				String("user_id", "u1"),
				Float64("value", 6.5),
				Bool("stale", false),
				Error(errors.New("boom")),
			)

			Convey("Then the line carries the message, fields and source", func() {
				var line map[string]any
				So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "classified")
				group, ok := line["scoring"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(group["user_id"], ShouldEqual, "u1")
				So(group["value"], ShouldEqual, 6.5)
				So(group["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level filters a message", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			l.Info(context.Background(), "hidden")
			l.Warn(context.Background(), "shown")

			So(strings.Contains(buf.String(), "hidden"), ShouldBeFalse)
			So(strings.Contains(buf.String(), "shown"), ShouldBeTrue)
			So(SetLevelString("info"), ShouldBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		for _, lvl := range []string{"debug", "info", "", "warn", "warning", "ERROR"} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestDiscard(t *testing.T) {
	Convey("Given the discard logger", t, func() {
		l := Discard()
		So(func() { l.Error(context.Background(), "dropped") }, ShouldNotPanic)
	})
}
