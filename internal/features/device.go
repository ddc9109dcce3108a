package features

import (
	"math"
	"strconv"
	"strings"

	"github.com/mbd888/fraudscore/internal/frame"
)

// DeriveDevice adds features parsed from DeviceType, DeviceInfo, id_30 (OS),
// id_31 (browser) and id_33 (screen resolution). Absent source columns are
// treated as all-null.
func DeriveDevice(t *frame.Table) (*frame.Table, error) {
	n := t.NumRows()
	devType := categoricalOrNull(t, "DeviceType", n)
	devInfo := categoricalOrNull(t, "DeviceInfo", n)
	osCol := categoricalOrNull(t, "id_30", n)
	browser := categoricalOrNull(t, "id_31", n)
	screen := categoricalOrNull(t, "id_33", n)

	var (
		isMobile   = make([]float64, n)
		isDesktop  = make([]float64, n)
		brand      = make([]string, n)
		infoLen    = make([]float64, n)
		browserNm  = make([]string, n)
		osName     = make([]string, n)
		width      = make([]float64, n)
		height     = make([]float64, n)
		area       = make([]float64, n)
		aspect     = make([]float64, n)
		browserFlg = map[string][]float64{"chrome": nil, "firefox": nil, "edge": nil, "safari": nil}
		osFlg      = map[string][]float64{"windows": nil, "mac": nil, "ios": nil, "android": nil}
	)
	for k := range browserFlg {
		browserFlg[k] = make([]float64, n)
	}
	for k := range osFlg {
		osFlg[k] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		isMobile[i] = boolFloat(devType[i] == "mobile")
		isDesktop[i] = boolFloat(devType[i] == "desktop")

		brand[i] = deviceBrand(devInfo[i])
		infoLen[i] = float64(len(devInfo[i]))

		b := strings.ToLower(browser[i])
		if f := strings.Fields(b); len(f) > 0 {
			browserNm[i] = f[0]
		}
		for k, s := range browserFlg {
			s[i] = boolFloat(strings.Contains(b, k))
		}

		o := osCol[i]
		if name, _, _ := strings.Cut(o, " "); name != "" {
			osName[i] = name
		}
		lo := strings.ToLower(o)
		for k, s := range osFlg {
			s[i] = boolFloat(strings.Contains(lo, k))
		}

		w, h, ok := screenSize(screen[i])
		if !ok {
			width[i], height[i], area[i], aspect[i] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			continue
		}
		width[i], height[i], area[i] = w, h, w*h
		if h > 0 {
			aspect[i] = w / h
		} else {
			aspect[i] = math.NaN()
		}
	}

	return t.With(
		frame.NewNumeric("device_is_mobile", isMobile),
		frame.NewNumeric("device_is_desktop", isDesktop),
		frame.NewCategorical("device_brand", brand),
		frame.NewNumeric("device_info_len", infoLen),
		frame.NewCategorical("browser", browserNm),
		frame.NewNumeric("browser_is_chrome", browserFlg["chrome"]),
		frame.NewNumeric("browser_is_firefox", browserFlg["firefox"]),
		frame.NewNumeric("browser_is_edge", browserFlg["edge"]),
		frame.NewNumeric("browser_is_safari", browserFlg["safari"]),
		frame.NewCategorical("os_name", osName),
		frame.NewNumeric("os_is_windows", osFlg["windows"]),
		frame.NewNumeric("os_is_mac", osFlg["mac"]),
		frame.NewNumeric("os_is_ios", osFlg["ios"]),
		frame.NewNumeric("os_is_android", osFlg["android"]),
		frame.NewNumeric("screen_width", width),
		frame.NewNumeric("screen_height", height),
		frame.NewNumeric("screen_area", area),
		frame.NewNumeric("screen_aspect", aspect),
	)
}

// deviceBrand takes the first word before any '/' of DeviceInfo.
func deviceBrand(info string) string {
	head, _, _ := strings.Cut(info, "/")
	if f := strings.Fields(head); len(f) > 0 {
		return f[0]
	}
	return ""
}

// screenSize parses "WxH".
func screenSize(s string) (w, h float64, ok bool) {
	ws, hs, found := strings.Cut(s, "x")
	if !found {
		return 0, 0, false
	}
	wi, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, false
	}
	return float64(wi), float64(hi), true
}
