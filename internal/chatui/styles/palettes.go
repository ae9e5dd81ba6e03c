package styles

// DefaultTheme follows the terminal's ANSI palette.
var DefaultTheme = Theme{
	Name: "default",
	Base: BaseColors{
		Foreground: "7",
		Muted:      "8",
		Accent:     "6",
		Border:     "8",
	},
	Message: MessageColors{
		Own:    "4",
		Other:  "2",
		System: "8",
	},
	Chrome: ChromeColors{
		Header:       "6",
		Footer:       "8",
		SelectedItem: "11",
		ActivePane:   "6",
		InactivePane: "8",
	},
}

// DarkTheme uses brighter accents for dark backgrounds.
var DarkTheme = Theme{
	Name: "dark",
	Base: BaseColors{
		Foreground: "252",
		Muted:      "241",
		Accent:     "80",
		Border:     "238",
	},
	Message: MessageColors{
		Own:    "75",
		Other:  "114",
		System: "241",
	},
	Chrome: ChromeColors{
		Header:       "80",
		Footer:       "241",
		SelectedItem: "221",
		ActivePane:   "80",
		InactivePane: "238",
	},
}

// LightTheme uses darker tones suitable for light backgrounds.
var LightTheme = Theme{
	Name: "light",
	Base: BaseColors{
		Foreground: "235",
		Muted:      "245",
		Accent:     "25",
		Border:     "250",
	},
	Message: MessageColors{
		Own:    "25",
		Other:  "28",
		System: "245",
	},
	Chrome: ChromeColors{
		Header:       "25",
		Footer:       "245",
		SelectedItem: "130",
		ActivePane:   "25",
		InactivePane: "250",
	},
}
