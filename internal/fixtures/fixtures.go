// Package fixtures holds captured upstream responses shared by tests.
package fixtures

import "time"

// CelestrakGNSS is a trimmed CelesTrak GP response for GROUP=gnss&FORMAT=3le.
const CelestrakGNSS = "GPS BIIR-2  (PRN 13)    \r\n" +
	"1 24876U 97035A   24330.31981729  .00000070  00000+0  00000+0 0  9998\r\n" +
	"2 24876  55.7269 120.8302 0085975  54.9372 305.8619  2.00561934200344\r\n" +
	"GPS BIIR-4  (PRN 20)    \r\n" +
	"1 26360U 00025A   24329.80330280 -.00000097  00000+0  00000+0 0  9993\r\n" +
	"2 26360  54.7908  42.3480 0040035 222.6061 214.6812  2.00567413179856\r\n" +
	"GPS BIIR-5  (PRN 22)    \r\n" +
	"1 26407U 00040A   24329.71623462 -.00000039  00000+0  00000+0 0  9995\r\n" +
	"2 26407  55.0052 237.7985 0139455 297.2393 274.4800  2.00562488178524\r\n" +
	"GPS BIIR-8  (PRN 16)    \r\n" +
	"1 27663U 03005A   24330.36058517 -.00000033  00000+0  00000+0 0  9994\r\n" +
	"2 27663  55.0419 237.5840 0141062  48.4337  49.4750  2.00565749159903\r\n" +
	"GPS BIIR-9  (PRN 21)    \r\n" +
	"1 27704U 03010A   24330.50743885 -.00000083  00000+0  00000+0 0  9996\r\n" +
	"2 27704  55.0608 347.2760 0257865 331.5949  87.8001  2.00568746158705\r\n" +
	"GPS BIIR-11 (PRN 19)    \r\n" +
	"1 28190U 04009A   24330.25269898 -.00000067  00000+0  00000+0 0  9996\r\n" +
	"2 28190  55.3165 298.5961 0098566 155.2090  16.6069  2.00573384151538\r\n"

// CelestrakGNSSIDs are the catalog numbers in CelestrakGNSS, in order.
var CelestrakGNSSIDs = []string{"24876", "26360", "26407", "27663", "27704", "28190"}

// CelestrakEpoch is close to the element set epochs of CelestrakGNSS.
var CelestrakEpoch = time.Date(2024, time.November, 25, 12, 0, 0, 0, time.UTC)

// SpaceTrackGPHistory is a gp_history 3LE response with repeated element
// sets for the same satellites.
const SpaceTrackGPHistory = "0 NAVSTAR 43 (USA 132)\r\n" +
	"1 24876U 97035A   24302.39915371  .00000082  00000-0  00000+0 0  9999\r\n" +
	"2 24876  55.7149 121.9219 0085478  54.7594 306.0903  2.00561667199789\r\n" +
	"0 NAVSTAR 43 (USA 132)\r\n" +
	"1 24876U 97035A   24302.39915371  .00000082  00000-0  00000-0 0  9990\r\n" +
	"2 24876  55.7149 121.9219 0085478  54.7594 306.0903  2.00561667199981\r\n" +
	"0 NAVSTAR 43 (USA 132)\r\n" +
	"1 24876U 97035A   24302.89773807  .00000082  00000-0  00000-0 0  9991\r\n" +
	"2 24876  55.7152 121.9024 0085492  54.7671 306.0822  2.00561669199994\r\n" +
	"0 NAVSTAR 47 (USA 150)\r\n" +
	"1 26360U 00025A   24302.01239243 -.00000089  00000-0  00000-0 0  9997\r\n" +
	"2 26360  54.7713  43.4781 0039809 220.0395 310.3282  2.00569476179299\r\n" +
	"0 NAVSTAR 48 (USA 151)\r\n" +
	"1 26407U 00040A   24302.49747413 -.00000049  00000-0  00000+0 0  9996\r\n" +
	"2 26407  55.0170 238.8805 0140960 296.6575  61.8162  2.00562089177970\r\n" +
	"0 NAVSTAR 48 (USA 151)\r\n" +
	"1 26407U 00040A   24302.49747413 -.00000049  00000-0  00000-0 0  9997\r\n" +
	"2 26407  55.0170 238.8805 0140960 296.6575  61.8162  2.00562089177981\r\n" +
	"0 NAVSTAR 51 (USA 166)\r\n" +
	"1 27663U 03005A   24302.53555285 -.00000049  00000-0  00000+0 0  9994\r\n" +
	"2 27663  55.0542 238.6902 0139702  48.0742 118.4102  2.00567274159335\r\n"

// SpaceTrackReference is the reference time the gp_history query was made for.
var SpaceTrackReference = time.Date(2024, time.October, 28, 8, 54, 0, 0, time.UTC)

// ISSLine1 and ISSLine2 are a low Earth orbit element set used by
// propagation tests.
const (
	ISSLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9993"
	ISSLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257767"
)

// DecayingLine1 and DecayingLine2 describe a very low, high-drag orbit
// (16.4 rev/day, B* 0.05) that SGP4 sees decay within days of its epoch.
const (
	DecayingLine1 = "1 99901U 24001A   24001.00000000  .01000000  00000-0  50000-1 0  9999"
	DecayingLine2 = "2 99901  51.6400 100.0000 0005000  90.0000 270.0000 16.40000000    12"
)

// DecayingEpoch is the epoch of DecayingLine1.
var DecayingEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
