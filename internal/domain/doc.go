// Package domain models hydrological analysis requests and results exchanged
// over Kafka.
//
// # Requests
//
// Each message on the source topic is a JSON [AnalysisRequest]. The kind
// selects the analysis:
//
//	rating_curve     fit Q = A·h² + B·h + C to paired stage/discharge samples
//	hydrograph       convolve rainfall pulses with a basin unit hydrograph
//	peak_flow        rational-method peak discharge for a small basin
//	discharge_stats  summary statistics of a daily discharge series
//
// Inputs are either carried inline (stage, discharge, rainfall,
// unit_hydrograph) or resolved from upstream services by station code and
// date range. Inline data always wins.
//
// # Data Sources
//
// ANA (Agência Nacional de Águas) telemetry web service:
//
//	HidroSerieHistorica returns one row per month per consistency level.
//	Cota (stage) is reported in centimetres and converted to metres.
//	Vazao (discharge) is in m³/s, Chuva (rainfall) in mm.
//	Level 1 is raw data, level 2 is consisted data. When both exist for a
//	day, level 2 wins.
//
// INMET (Instituto Nacional de Meteorologia) REST API:
//
//	Hourly observations carry DT_MEDICAO (yyyy-mm-dd) and HR_MEDICAO
//	(HHMM, UTC). Numeric values arrive as strings, numbers or null.
//	A single request may span at most one year.
//
// MERGE (CPTEC/INPE gridded daily precipitation):
//
//	One GRIB2 file per day under DAILY/yyyy/mm/MERGE_CPTEC_yyyymmdd.grib2.
//
// # Units
//
// Stage in metres, discharge in m³/s, rainfall depth in mm, basin area in
// km², intensity in mm/h, sediment concentration in mg/L and sediment load
// in t/day.
//
// # ID Generation
//
// Requests without an id get a deterministic SHA-256 derived ID of the raw
// payload, so replays produce the same result key. See [requestID].
package domain
