package config

import (
	"strings"
	"time"
)

// Native scales, in metres, of the catalogue's datasets.
const (
	ScaleMODIS       = 1000
	ScaleMODISNative = 463.313
	ScaleDaymet      = 1000
	ScaleGridMET     = 4638.3
	ScaleSMAP        = 9000
)

const defaultEnd = "2021-12-31"

// DefaultVariables is the basin catalogue: MODIS NDVI at two resolutions,
// Daymet snow water equivalent, gridMET temperature, precipitation and
// drought indices, and SMAP soil moisture. Manifests are expected at
// <root>/<dataset>/manifest.yaml; root may be a directory or a URL.
func DefaultVariables(root string) []Variable {
	manifest := func(dataset string) string {
		return strings.TrimRight(root, "/") + "/" + dataset + "/manifest.yaml"
	}
	monthly := []string{"M"}

	vars := []Variable{
		{Name: "NDVI", Manifest: manifest("MOD09GA_NDVI"), Band: "NDVI", Scale: ScaleMODIS,
			Smooth: []int{15, 30}, Resample: monthly, Anomaly: true, From: "2000-02-24", To: defaultEnd},
		{Name: "PP_NDVI", Manifest: manifest("MOD09GA_006_NDVI"), Band: "NDVI", Scale: ScaleMODISNative,
			Smooth: []int{15, 30}, Resample: monthly, Anomaly: true, From: "2000-02-24", To: defaultEnd},
		{Name: "swe", Manifest: manifest("DAYMET_V4"), Band: "swe", Scale: ScaleDaymet,
			Resample: monthly, Anomaly: true, From: "1980-01-01", To: defaultEnd},
	}
	for _, band := range []string{"tmmn", "tmmx", "pr"} {
		vars = append(vars, Variable{Name: band, Manifest: manifest("GRIDMET"), Band: band, Scale: ScaleGridMET,
			Resample: monthly, Anomaly: true, From: "1980-01-01", To: defaultEnd})
	}

	drought := []string{"pdsi"}
	for _, index := range []string{"spei", "spi", "eddi"} {
		for _, days := range []string{"30d", "90d", "180d"} {
			drought = append(drought, index+days)
		}
	}
	for _, band := range drought {
		vars = append(vars, Variable{Name: band, Manifest: manifest("GRIDMET_DROUGHT"), Band: band, Scale: ScaleGridMET,
			Resample: monthly, From: "1980-01-01", To: defaultEnd})
	}

	vars = append(vars,
		Variable{Name: "soil_moisture_am", Manifest: manifest("SPL3SMP_E"), Band: "soil_moisture_am", Scale: ScaleSMAP,
			Resample: monthly, From: "2021-03-31", To: defaultEnd},
		Variable{Name: "soil_moisture_pm", Manifest: manifest("SPL3SMP_E"), Band: "soil_moisture_pm", Scale: ScaleSMAP,
			Resample: monthly, From: "2015-03-31", To: defaultEnd},
	)
	return vars
}

// Default returns a complete catalogue over DefaultVariables.
func Default(root string) *Catalogue {
	return &Catalogue{
		AOI: "aoi.geojson",
		Defaults: Defaults{
			Budget:   30 * time.Minute,
			CacheDir: "cache",
			CacheTTL: 7 * 24 * time.Hour,
		},
		Variables: DefaultVariables(root),
	}
}
