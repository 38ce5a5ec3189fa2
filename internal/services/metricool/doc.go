// Package metricool schedules short videos on social networks through the
// Metricool planner API.
//
// A post carries a public media URL, the caption text, and a publication
// time. The time is rendered as a wall-clock dateTime in the configured
// timezone and sent with that zone name, so the planner and the quota day
// agree on what "today" means. Network-specific sections (Instagram and
// Facebook reels, YouTube shorts, TikTok) are added only for configured
// platforms.
package metricool
