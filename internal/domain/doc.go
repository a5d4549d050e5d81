// Package domain models FAA UAS sighting reports and the extraction rules
// that turn their free-text narratives into structured fields.
//
// # Data Source
//
// Sighting reports originate from the FAA's public UAS sighting releases:
// quarterly spreadsheets whose rows carry a date, city, state, and a
// free-text narrative written by air traffic personnel. An upstream splitter
// shatters those spreadsheets into small chunk CSVs; this service enriches
// the chunks and consolidates the results into yearly master datasets.
//
// # Narrative Conventions
//
// Narratives are upper-cased teletype-style prose. The recurring shapes the
// rule library keys on:
//
//	Relative position:  "<distance> <compass> <IATA>"  →  "5 NW LAX"
//	  means 5 miles northwest of LAX. Compass directions: N, S, E, W and
//	  the 8- and 16-point combinations (NE, ESE, SSW, ...).
//
//	Altitude:  "1,500 FEET", "500 FT", or flight-level "FL250" (= 25,000 ft).
//
//	Aircraft:  "ADVISED, C172," or "AIRCRAFT TYPE: B738" or a bare
//	  manufacturer name (CESSNA, BOEING, ...).
//
//	Color:  only meaningful when the narrative mentions a UAS or DRONE;
//	  "MULTI-COLOR"/"MULTI COLOR" normalize to "MULTI-COLORED".
//
//	Evasive action:  "NO EVASIVE ACTION TAKEN" → NO; "TOOK EVASIVE ACTION"
//	  → YES; narratives that never mention it → UNKNOWN.
//
//	LEO notification:  "<AGENCY> NOTIFIED" at the end of the narrative.
//	  FAA facility designators (ATCT, TRACON, APPROACH, TOWER, CENTER, FSS,
//	  ARTCC) are advised, not notified, and are never reported as an agency.
//
// # Sentinel Values
//
// "N/A", "NA", "UNKNOWN", "NOT REPORTED", "NONE", "NULL", "UNREPORTED", and
// the empty string all mean "no data" and standardize to the empty string
// before any record comparison. See [StandardizeValue].
//
// # Extraction Rules
//
// Each field owns an ordered set of [Rule]s loaded from the embedded
// rules.yaml document. Rules are evaluated strictly in tier order
// (critical > high > medium > low > fallback); the first rule that matches
// wins and lower tiers are never consulted. Every individual rule
// evaluation is bounded in time; a rule that exceeds its budget counts as a
// non-match. See [Extractor].
package domain
