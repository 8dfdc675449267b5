/*
Copyright © 2024 the sargrid authors.
This file is part of sargrid.

sargrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sargrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sargrid.  If not, see <http://www.gnu.org/licenses/>.
*/


// Command sargrid grids species at risk ranges to a 1 km national grid.
package main

import (
	"fmt"
	"os"

	"github.com/ncc-cnc/sargrid/sargridutil"
)

func main() {
	if err := sargridutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
