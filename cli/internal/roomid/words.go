package roomid

var creatures = []string{
	"otter", "heron", "lynx", "marten", "gecko", "puffin", "badger", "ibex", "tapir", "vole",
	"wren", "newt", "bison", "crane", "dingo", "egret", "ferret", "gibbon", "hare", "jackal",
	"kestrel", "lemur", "moose", "ocelot", "pika", "quokka", "raven", "stoat", "toad", "walrus",
}

var foods = []string{
	"bagel", "brioche", "churro", "crepe", "dumpling", "fig", "gelato", "hummus", "kimchi", "latke",
	"mango", "mochi", "nacho", "olive", "pesto", "plum", "pretzel", "scone", "tofu", "truffle",
}

var places = []string{
	"harbor", "meadow", "canyon", "glacier", "lagoon", "orchard", "prairie", "summit", "tundra", "valley",
	"delta", "fjord", "grove", "island", "marsh", "oasis", "ridge", "steppe", "atoll", "bayou",
}

var moods = []string{
	"amber", "bold", "breezy", "cosmic", "dusky", "eager", "fancy", "gentle", "hazy", "idle",
	"jazzy", "keen", "lively", "mellow", "nimble", "plucky", "quiet", "rusty", "snowy", "witty",
}

var things = []string{
	"anchor", "beacon", "compass", "drum", "ember", "feather", "kettle", "lantern", "marble", "needle",
	"paddle", "quill", "ribbon", "saddle", "teacup", "umbrella", "violin", "whistle", "yoyo", "zipper",
}

// lists is the pool every room id draws from, one word per list.
var lists = [][]string{creatures, foods, places, moods, things}
