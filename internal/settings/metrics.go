package settings

import (
	"github.com/neuralliquid/portal/internal/theme"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	themeMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theme_mutations_total",
			Help: "Theme mutations applied through the API.",
		},
		[]string{"operation"},
	)
	themeResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theme_resolutions_total",
			Help: "Theme resolutions by axis and the source that decided it.",
		},
		[]string{"axis", "source"},
	)
)

func init() {
	prometheus.MustRegister(themeMutationsTotal)
	prometheus.MustRegister(themeResolutionsTotal)
}

func observeResolution(res theme.Resolution) {
	themeResolutionsTotal.WithLabelValues("variant", res.VariantSource.String()).Inc()
	themeResolutionsTotal.WithLabelValues("color_mode", res.ColorModeSource.String()).Inc()
}
