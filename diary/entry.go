package diary

import (
	"fmt"
	"strings"
	"time"
)

// Weather 是日记上方可选的天气图标。
type Weather string

const (
	WeatherNone   Weather = ""
	WeatherSunny  Weather = "sunny"
	WeatherCloudy Weather = "cloudy"
	WeatherRainy  Weather = "rainy"
	WeatherSnowy  Weather = "snowy"
)

// Weathers 按页面上的显示顺序列出全部天气。
var Weathers = []Weather{WeatherSunny, WeatherCloudy, WeatherRainy, WeatherSnowy}

var weatherAliases = map[string]Weather{
	"sunny": WeatherSunny, "sun": WeatherSunny, "clear": WeatherSunny, "맑음": WeatherSunny,
	"cloudy": WeatherCloudy, "cloud": WeatherCloudy, "흐림": WeatherCloudy,
	"rainy": WeatherRainy, "rain": WeatherRainy, "비": WeatherRainy,
	"snowy": WeatherSnowy, "snow": WeatherSnowy, "눈": WeatherSnowy,
}

// ParseWeather 解析天气名称，空字符串返回 WeatherNone。
func ParseWeather(s string) (Weather, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return WeatherNone, nil
	}
	if w, ok := weatherAliases[s]; ok {
		return w, nil
	}
	return WeatherNone, fmt.Errorf("未知的天气：%s", s)
}

// Entry 是一篇图画日记。
type Entry struct {
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Weather Weather   `json:"weather,omitempty"`
	Author  string    `json:"author,omitempty"`
	// Font 是 resources 中声明的字体名。
	Font string `json:"font,omitempty"`
	Body string `json:"body"`
	// Illustration 是插图引用：资源名、文件路径、URL 或 data: URI。
	Illustration string `json:"illustration,omitempty"`
	Columns      int    `json:"columns,omitempty"`
	// Rows 为 0 时按正文自动计算。
	Rows int `json:"rows,omitempty"`
}

// DateLayout 是 .diary 文件与页面上使用的日期格式。
const DateLayout = "2006-01-02"

// FormatDate 以 "2006년 1월 2일 월요일" 的形式输出日期。
func (e Entry) FormatDate() string {
	if e.Date.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d년 %d월 %d일 %s", e.Date.Year(), int(e.Date.Month()), e.Date.Day(), koreanWeekdays[e.Date.Weekday()])
}

var koreanWeekdays = [...]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}
