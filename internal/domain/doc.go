// Package domain models seismic hazard events from the USGS earthquake catalog
// and the rules the dashboard applies to them.
//
// # Data Source
//
// Events come from the USGS FDSN event web service
// (https://earthquake.usgs.gov/fdsnws/event/1/), queried in GeoJSON format for a
// calendar date range, a minimum magnitude and an optional bounding box. Each
// feature carries its properties and a point geometry:
//
//	properties: {mag, time, place, url, magType, status}
//	geometry:   [lon, lat, depthKm]
//
// time is milliseconds since the Unix epoch (UTC). mag may be null for events
// that have not been reviewed yet.
//
// # Magnitude Fallback
//
// A null or missing mag is treated as 0. The record is kept, not dropped: the
// catalog already filtered by minimum magnitude server-side and the dashboard
// trusts it. See [ParseFeatureCollection].
//
// # Severity Classification
//
// Four ordered classes with inclusive lower bounds:
//
//	LOW       m < 5        #0080ff
//	MEDIUM    5 <= m < 6   #ffa500
//	HIGH      6 <= m < 7   #ff4500
//	CRITICAL  m >= 7       #ff0000
//
// The dashboard's filter checkboxes historically used the keys "4-5", "5-6",
// "6-7" and "7-8"; [ParseSeverityClass] still accepts them.
//
// # Statistics
//
// [ComputeStatistics] always runs over the full fetched set, never the filtered
// view. The stats panel shows catalog-wide context next to a filtered map.
package domain
